package blobstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"photostore/internal/models"
)

// SweepOptions tunes one sweep run.
type SweepOptions struct {
	BatchSize int
	DryRun    bool
}

// SweepResult reports one sweep run.
type SweepResult struct {
	Candidates         int   `json:"candidates" yaml:"candidates"`
	Deleted            int   `json:"deleted" yaml:"deleted"`
	Skipped            int   `json:"skipped" yaml:"skipped"`
	Failed             int   `json:"failed" yaml:"failed"`
	DerivativesDeleted int   `json:"derivatives_deleted" yaml:"derivatives_deleted"`
	ReclaimedBytes     int64 `json:"reclaimed_bytes" yaml:"reclaimed_bytes"`
	DryRun             bool  `json:"dry_run" yaml:"dry_run"`
}

// Sweep reclaims originals whose reference count is zero, together with their
// derivatives. Each candidate's count is checked again inside the deleting
// transaction, so an original that gained a reference after the scan is
// skipped. Only one sweep runs at a time across every process sharing the
// database; a concurrent call returns ErrSweepInProgress without waiting.
func (s *Service) Sweep(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	result := SweepResult{DryRun: opts.DryRun}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.opts.SweepBatchSize
	}

	if !s.sweepMu.TryLock() {
		return result, ErrSweepInProgress
	}
	defer s.sweepMu.Unlock()

	if err := s.acquireLease(ctx); err != nil {
		return result, err
	}
	defer func() {
		if err := s.backend.ReleaseSweepLease(context.WithoutCancel(ctx), sweepLeaseName, s.leaseOwner); err != nil {
			s.logger.Warn("sweep lease release failed", "event", EventSweepLeaseReleaseFailed, "error", err)
		}
	}()

	after := models.BlobID(0)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		candidates, err := s.backend.ListUnreferenced(ctx, after, batchSize)
		if err != nil {
			return result, storageError("list unreferenced blobs", err)
		}
		if len(candidates) == 0 {
			break
		}
		after = candidates[len(candidates)-1].ID
		result.Candidates += len(candidates)

		for _, candidate := range candidates {
			if opts.DryRun {
				result.ReclaimedBytes += candidate.SizeBytes + candidate.DerivativeBytes
				result.DerivativesDeleted += candidate.Derivatives
				continue
			}

			deleted, err := s.backend.DeleteIfUnreferenced(ctx, candidate.ID)
			if err != nil {
				result.Failed++
				s.logger.Warn("sweep delete failed", "blob_id", candidate.ID, "error", err)
				continue
			}
			if !deleted.Deleted {
				result.Skipped++
				continue
			}
			s.forget(candidate.ID, deleted.DerivativeIDs)
			result.Deleted++
			result.DerivativesDeleted += deleted.DerivativesDeleted
			result.ReclaimedBytes += deleted.ReclaimedBytes
		}

		// Renew between batches so a long sweep keeps its lease.
		if err := s.acquireLease(ctx); err != nil {
			return result, err
		}
	}

	s.logger.Info("sweep finished",
		"candidates", result.Candidates,
		"deleted", result.Deleted,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"derivatives_deleted", result.DerivativesDeleted,
		"reclaimed_bytes", result.ReclaimedBytes,
		"dry_run", result.DryRun,
	)
	return result, nil
}

func (s *Service) acquireLease(ctx context.Context) error {
	ok, err := s.backend.AcquireSweepLease(ctx, sweepLeaseName, s.leaseOwner, s.opts.SweepLeaseTTL, s.opts.Now())
	if err != nil {
		return storageError("acquire sweep lease", err)
	}
	if !ok {
		return ErrSweepInProgress
	}
	return nil
}

// Sweeper runs Sweep periodically.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	opts     SweepOptions
	logger   *slog.Logger
}

// NewSweeper returns a Sweeper running svc.Sweep every interval.
func NewSweeper(svc *Service, interval time.Duration, opts SweepOptions) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, opts: opts, logger: svc.logger.With("component", "sweeper")}
}

// Run sweeps once immediately and then on every tick until ctx is done. A
// tick that finds another sweep running is skipped.
func (w *Sweeper) Run(ctx context.Context, onResult func(SweepResult)) error {
	if w.interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		result, err := w.svc.Sweep(ctx, w.opts)
		switch {
		case err == nil:
			if onResult != nil {
				onResult(result)
			}
		case errors.Is(err, ErrSweepInProgress):
			w.logger.Debug("sweep tick skipped: another sweep is running")
		case ctx.Err() != nil:
			return nil
		default:
			w.logger.Error("sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

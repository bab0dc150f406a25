// Package blobstore is the content-addressed photo engine: it stores decoded
// payloads once per content hash, derives thumbnails, tracks references and
// reclaims unreferenced originals.
package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"photostore/internal/hasher"
	"photostore/internal/imaging"
	"photostore/internal/models"
	"photostore/internal/payload"
	"photostore/internal/store"
)

const (
	defaultSweepBatchSize   = 500
	defaultSweepLeaseTTL    = 5 * time.Minute
	defaultHashCacheEntries = 4096
	defaultBackfillWorkers  = 4

	sweepLeaseName = "blob-sweep"
)

// Log event names attached to best-effort failures.
const (
	EventDerivativeGenerationFailed = "derivative_generation_failed"
	EventDerivativeSkipped          = "derivative_skipped"
	EventDimensionProbeFailed       = "dimension_probe_failed"
	EventAccessTouchFailed          = "access_touch_failed"
	EventSweepLeaseReleaseFailed    = "sweep_lease_release_failed"
)

// Renderer produces a bounded derivative from raw image bytes.
// imaging.Generator is the production implementation.
type Renderer interface {
	Thumbnail(ctx context.Context, raw []byte) (imaging.Thumbnail, error)
}

// Options tunes a Service. The zero value disables derivatives; use
// DefaultOptions as a starting point.
type Options struct {
	Derivatives       bool
	AsyncDerivatives  bool
	DerivativeTimeout time.Duration
	Renderer          Renderer

	SweepBatchSize int
	SweepLeaseTTL  time.Duration

	HashCacheEntries int

	Now func() time.Time
}

// DefaultOptions returns the options used when no configuration overrides them.
func DefaultOptions() Options {
	return Options{
		Derivatives:       true,
		DerivativeTimeout: imaging.DefaultTimeout,
		SweepBatchSize:    defaultSweepBatchSize,
		SweepLeaseTTL:     defaultSweepLeaseTTL,
		HashCacheEntries:  defaultHashCacheEntries,
	}
}

// DeleteResult reports what one delete removed.
type DeleteResult = store.DeleteResult

// Service is the blob engine. It is safe for concurrent use.
type Service struct {
	backend  Backend
	hasher   hasher.Hasher
	renderer Renderer
	logger   *slog.Logger
	opts     Options
	hashes   *lru.Cache[models.BlobID, digest.Digest]

	background sync.WaitGroup
	sweepMu    sync.Mutex
	leaseOwner string
}

// New constructs a Service over backend. A nil hasher selects the default
// algorithm and a nil logger selects slog.Default(). The first service over a
// database records its algorithm there; later services must match it.
func New(backend Backend, h hasher.Hasher, logger *slog.Logger, opts Options) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob backend is required")
	}
	if h == nil {
		var err error
		if h, err = hasher.New(hasher.Default); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = defaultSweepBatchSize
	}
	if opts.SweepLeaseTTL <= 0 {
		opts.SweepLeaseTTL = defaultSweepLeaseTTL
	}
	if opts.HashCacheEntries <= 0 {
		opts.HashCacheEntries = defaultHashCacheEntries
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	// Dedup keys carry the algorithm, so a database only ever takes one.
	recorded, err := backend.ClaimHashAlgorithm(context.Background(), h.Algorithm())
	if err != nil {
		return nil, storageError("record hash algorithm", err)
	}
	if recorded != h.Algorithm() {
		return nil, fmt.Errorf("%w: database uses %s, configured %s", ErrHashAlgorithmMismatch, recorded, h.Algorithm())
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = imaging.Generator{Timeout: opts.DerivativeTimeout}
	}

	hashes, err := lru.New[models.BlobID, digest.Digest](opts.HashCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("hash cache: %w", err)
	}

	owner, err := store.GenerateLeaseOwner()
	if err != nil {
		return nil, fmt.Errorf("sweep lease owner: %w", err)
	}

	return &Service{
		backend:    backend,
		hasher:     h,
		renderer:   renderer,
		logger:     logger.With("component", "blobstore"),
		opts:       opts,
		hashes:     hashes,
		leaseOwner: owner,
	}, nil
}

// Close waits for background derivative work to finish. It does not close
// the backend, which the caller owns.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.background.Wait()
	return nil
}

// Algorithm names the content hash algorithm of new records.
func (s *Service) Algorithm() string {
	return s.hasher.Algorithm()
}

// StoreOption adjusts a single Store call.
type StoreOption func(*storeConfig)

type storeConfig struct {
	generateDerivative bool
}

// WithoutDerivative skips thumbnail generation for this upload.
func WithoutDerivative() StoreOption {
	return func(c *storeConfig) { c.generateDerivative = false }
}

// WithDerivative sets whether this upload may get a thumbnail.
func WithDerivative(generate bool) StoreOption {
	return func(c *storeConfig) { c.generateDerivative = generate }
}

// StoreResult reports the id an upload resolved to and whether it created
// the record.
type StoreResult struct {
	ID      models.BlobID
	Created bool
}

// Store decodes encodedPayload and persists it unless a record with the same
// content hash exists, in which case the existing id is returned and the
// record is left untouched. New records start with one reference.
func (s *Service) Store(ctx context.Context, encodedPayload, uploaderID string, opts ...StoreOption) (models.BlobID, error) {
	result, err := s.Put(ctx, encodedPayload, uploaderID, opts...)
	return result.ID, err
}

// Put is Store that also reports whether the upload created a record.
func (s *Service) Put(ctx context.Context, encodedPayload, uploaderID string, opts ...StoreOption) (StoreResult, error) {
	cfg := storeConfig{generateDerivative: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	uploaderID = strings.TrimSpace(uploaderID)
	if uploaderID == "" {
		return StoreResult{}, fmt.Errorf("%w: uploader id is required", ErrInvalidArgument)
	}
	decoded, err := payload.Decode(encodedPayload)
	if err != nil {
		return StoreResult{}, err
	}

	hash := s.hasher.Hash(decoded.Data)
	existing, err := s.backend.GetBlobByHash(ctx, hash)
	if err != nil {
		return StoreResult{}, storageError("lookup content hash", err)
	}
	if existing != nil {
		s.logger.Debug("dedup hit", "blob_id", existing.ID, "content_hash", hash)
		return StoreResult{ID: existing.ID}, nil
	}

	record := &models.BlobRecord{
		ContentHash:    hash,
		Payload:        decoded.Data,
		MimeType:       decoded.MimeType,
		UploaderID:     uploaderID,
		ReferenceCount: 1,
		CreatedAt:      s.opts.Now(),
	}
	if dims, err := imaging.Probe(decoded.Data); err != nil {
		s.logger.Warn("dimension probe failed", "event", EventDimensionProbeFailed, "content_hash", hash, "mime_type", decoded.MimeType, "error", err)
	} else {
		record.Width = &dims.Width
		record.Height = &dims.Height
	}

	id, inserted, err := s.backend.InsertIfAbsent(ctx, record)
	if err != nil {
		return StoreResult{}, storageError("insert blob", err)
	}
	if !inserted {
		// Lost a race with a concurrent upload of the same bytes.
		s.logger.Debug("dedup hit", "blob_id", id, "content_hash", hash)
		return StoreResult{ID: id}, nil
	}
	s.hashes.Add(id, hash)
	s.logger.Info("blob stored", "blob_id", id, "content_hash", hash, "size_bytes", record.SizeBytes, "uploader_id", uploaderID)

	if cfg.generateDerivative && s.wantsDerivative(record) {
		if s.opts.AsyncDerivatives {
			s.background.Add(1)
			go func() {
				defer s.background.Done()
				s.generateDerivative(context.WithoutCancel(ctx), record)
			}()
		} else {
			s.generateDerivative(ctx, record)
		}
	}

	return StoreResult{ID: id, Created: true}, nil
}

func (s *Service) wantsDerivative(original *models.BlobRecord) bool {
	if !s.opts.Derivatives || original.IsDerivative || !original.HasDimensions() {
		return false
	}
	return imaging.NeedsThumbnail(*original.Width, *original.Height)
}

// generateDerivative renders and persists a thumbnail for original. Every
// failure is logged and reported as "no derivative".
func (s *Service) generateDerivative(ctx context.Context, original *models.BlobRecord) (models.BlobID, bool) {
	thumb, err := s.renderer.Thumbnail(ctx, original.Payload)
	if err != nil {
		s.logger.Warn("derivative generation failed", "event", EventDerivativeGenerationFailed, "blob_id", original.ID, "error", err)
		return 0, false
	}

	originalID := original.ID
	width, height := thumb.Width, thumb.Height
	mimeType := thumb.MimeType
	if mimeType == "" {
		mimeType = imaging.ThumbnailMimeType
	}
	derived := &models.BlobRecord{
		ContentHash:    s.hasher.Hash(thumb.Data),
		Payload:        thumb.Data,
		MimeType:       mimeType,
		Width:          &width,
		Height:         &height,
		UploaderID:     original.UploaderID,
		IsDerivative:   true,
		OriginalBlobID: &originalID,
		CreatedAt:      s.opts.Now(),
	}

	id, inserted, err := s.backend.InsertIfAbsent(ctx, derived)
	if err != nil {
		s.logger.Warn("derivative generation failed", "event", EventDerivativeGenerationFailed, "blob_id", original.ID, "error", err)
		return 0, false
	}
	if !inserted {
		s.logger.Info("derivative not stored: content hash already present", "event", EventDerivativeSkipped, "blob_id", original.ID, "existing_id", id)
		return 0, false
	}

	s.hashes.Add(id, derived.ContentHash)
	s.logger.Debug("derivative stored", "blob_id", original.ID, "derivative_id", id, "width", width, "height", height)
	return id, true
}

// GetMetadata returns a record without its payload.
func (s *Service) GetMetadata(ctx context.Context, id models.BlobID) (models.BlobRecord, error) {
	record, err := s.backend.GetBlob(ctx, id, false)
	if err != nil {
		return models.BlobRecord{}, fmt.Errorf("get blob %s: %w", id, err)
	}
	if record == nil {
		return models.BlobRecord{}, notFound(id)
	}
	return *record, nil
}

// Delete removes a record and every derivative of it in one transaction.
// Deleting a missing id is not an error and reports false.
func (s *Service) Delete(ctx context.Context, id models.BlobID) (bool, error) {
	result, err := s.Remove(ctx, id)
	return result.Deleted, err
}

// Remove is Delete with the full accounting of what was removed.
func (s *Service) Remove(ctx context.Context, id models.BlobID) (DeleteResult, error) {
	result, err := s.backend.DeleteBlob(ctx, id)
	if err != nil {
		return result, storageError("delete blob", err)
	}
	if result.Deleted {
		s.forget(id, result.DerivativeIDs)
		s.logger.Info("blob deleted", "blob_id", id, "derivatives", result.DerivativesDeleted, "reclaimed_bytes", result.ReclaimedBytes)
	}
	return result, nil
}

func (s *Service) forget(id models.BlobID, derivatives []models.BlobID) {
	s.hashes.Remove(id)
	for _, derivID := range derivatives {
		s.hashes.Remove(derivID)
	}
}

// BackfillResult reports one derivative backfill run.
type BackfillResult struct {
	Candidates int `json:"candidates" yaml:"candidates"`
	Generated  int `json:"generated" yaml:"generated"`
	Failed     int `json:"failed" yaml:"failed"`
}

// BackfillDerivatives generates thumbnails for originals that exceed the
// bounding box but have none, using up to workers concurrent renders.
func (s *Service) BackfillDerivatives(ctx context.Context, workers int) (BackfillResult, error) {
	result := BackfillResult{}
	if workers <= 0 {
		workers = defaultBackfillWorkers
	}

	var generated, failed atomic.Int64
	after := models.BlobID(0)
	for {
		ids, err := s.backend.ListOriginalsMissingDerivative(ctx, imaging.MaxThumbnailWidth, imaging.MaxThumbnailHeight, after, s.opts.SweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("list originals missing derivative: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]
		result.Candidates += len(ids)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, id := range ids {
			g.Go(func() error {
				original, err := s.backend.GetBlob(gctx, id, true)
				if err != nil {
					return fmt.Errorf("load blob %s: %w", id, err)
				}
				if original == nil {
					return nil
				}
				if _, ok := s.generateDerivative(gctx, original); ok {
					generated.Add(1)
				} else {
					failed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			result.Generated, result.Failed = int(generated.Load()), int(failed.Load())
			return result, err
		}
	}

	result.Generated, result.Failed = int(generated.Load()), int(failed.Load())
	s.logger.Info("derivative backfill finished", "candidates", result.Candidates, "generated", result.Generated, "failed", result.Failed)
	return result, nil
}

// Info returns record counts and the schema version.
func (s *Service) Info(ctx context.Context) (store.Stats, error) {
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("store info: %w", err)
	}
	return stats, nil
}

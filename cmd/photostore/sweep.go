package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
)

func newSweepCmd(cfg *config.Config) *cobra.Command {
	var (
		dryRun    bool
		batchSize int
		watch     bool
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim unreferenced originals and their thumbnails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := blobstore.SweepOptions{BatchSize: batchSize, DryRun: dryRun}
			if opts.BatchSize <= 0 {
				opts.BatchSize = cfg.Sweep.BatchSize
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				if !watch {
					result, err := svc.Sweep(ctx, opts)
					if err != nil {
						return err
					}
					return writeSweepResult(result)
				}

				every := interval
				if every <= 0 {
					every = cfg.Sweep.Interval
				}
				return blobstore.NewSweeper(svc, every, opts).Run(ctx, func(result blobstore.SweepResult) {
					_ = writeSweepResult(result)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be reclaimed without deleting")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "candidates per batch (default: sweep.batch_size)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep sweeping on an interval until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "interval between sweeps with --watch (default: sweep.interval)")
	return cmd
}

func writeSweepResult(result blobstore.SweepResult) error {
	if structuredOutput() {
		return writeStructured(result)
	}
	if result.DryRun {
		return writePlain("dry run: %d candidates, would reclaim %d bytes including %d thumbnails\n",
			result.Candidates, result.ReclaimedBytes, result.DerivativesDeleted)
	}
	return writePlain("candidates: %d, deleted: %d, skipped: %d, failed: %d, thumbnails: %d, reclaimed: %d bytes\n",
		result.Candidates, result.Deleted, result.Skipped, result.Failed, result.DerivativesDeleted, result.ReclaimedBytes)
}

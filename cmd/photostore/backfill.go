package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
)

func newBackfillCmd(cfg *config.Config) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "backfill-thumbnails",
		Short: "Generate missing thumbnails for large originals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				result, err := svc.BackfillDerivatives(ctx, workers)
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(result)
				}
				return writePlain("candidates: %d, generated: %d, failed: %d\n", result.Candidates, result.Generated, result.Failed)
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent thumbnail renders")
	return cmd
}

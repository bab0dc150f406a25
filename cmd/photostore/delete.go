package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
)

type deleteResult struct {
	ID                 models.BlobID `json:"id" yaml:"id"`
	Deleted            bool          `json:"deleted" yaml:"deleted"`
	DerivativesDeleted int           `json:"derivatives_deleted" yaml:"derivatives_deleted"`
	ReclaimedBytes     int64         `json:"reclaimed_bytes" yaml:"reclaimed_bytes"`
}

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id> [<id>...]",
		Short: "Delete photos and their thumbnails",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				results := make([]deleteResult, 0, len(ids))
				for _, id := range ids {
					removed, err := svc.Remove(ctx, id)
					if err != nil {
						return err
					}
					results = append(results, deleteResult{
						ID:                 id,
						Deleted:            removed.Deleted,
						DerivativesDeleted: removed.DerivativesDeleted,
						ReclaimedBytes:     removed.ReclaimedBytes,
					})
				}

				if structuredOutput() {
					return writeStructured(results)
				}
				for _, result := range results {
					if !result.Deleted {
						_ = writePlain("%s: not found\n", result.ID)
						continue
					}
					_ = writePlain("%s: deleted (thumbnails: %d, reclaimed: %d bytes)\n", result.ID, result.DerivativesDeleted, result.ReclaimedBytes)
				}
				return nil
			})
		},
	}

	return cmd
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
)

type refResult struct {
	ID             models.BlobID `json:"id" yaml:"id"`
	ReferenceCount int64         `json:"reference_count" yaml:"reference_count"`
}

func newRefCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ref",
		Short: "Attach or detach references to originals",
	}

	cmd.AddCommand(
		newRefChangeCmd(cfg, "attach", "Record a new reference to an original", (*blobstore.Service).AttachReference),
		newRefChangeCmd(cfg, "detach", "Drop a reference to an original", (*blobstore.Service).DetachReference),
	)
	return cmd
}

func newRefChangeCmd(cfg *config.Config, name, short string, change func(*blobstore.Service, context.Context, models.BlobID) (int64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseBlobID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				count, err := change(svc, ctx, id)
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(refResult{ID: id, ReferenceCount: count})
				}
				return writePlain("%s: reference_count %d\n", id, count)
			})
		},
	}
}

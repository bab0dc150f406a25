package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
)

func newShowCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id> [<id>...]",
		Short: "Show photo metadata",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				records := make([]models.BlobRecord, 0, len(ids))
				for _, id := range ids {
					record, err := svc.GetMetadata(ctx, id)
					if err != nil {
						return err
					}
					records = append(records, record)
				}

				if len(records) == 1 {
					if structuredOutput() {
						return writeStructured(records[0])
					}
					return writeRecordDetail(records[0])
				}
				if structuredOutput() {
					return writeStructured(records)
				}
				return writeRecordList(records)
			})
		},
	}

	return cmd
}

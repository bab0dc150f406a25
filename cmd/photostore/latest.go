package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
)

func newLatestCmd(cfg *config.Config) *cobra.Command {
	var includeThumbnails bool

	cmd := &cobra.Command{
		Use:   "latest <uploader>",
		Short: "Show the most recent photo of an uploader",
		Args:  requireExactlyArgs(1, "uploader is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				record, err := svc.FindLatestByUploader(ctx, args[0], !includeThumbnails)
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(record)
				}
				if record == nil {
					return writePlain("no photos for uploader %s\n", args[0])
				}
				return writeRecordDetail(*record)
			})
		},
	}

	cmd.Flags().BoolVar(&includeThumbnails, "include-thumbnails", false, "consider thumbnails as well as originals")
	return cmd
}

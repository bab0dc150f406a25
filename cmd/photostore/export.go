package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Mirror every stored payload into a content-addressed directory tree",
		Args:  requireExactlyArgs(1, "output directory is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				result, err := svc.Export(ctx, args[0])
				if err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(result)
				}
				return writePlain("objects: %d, written: %d, skipped: %d, bytes: %d\n", result.Objects, result.Written, result.Skipped, result.Bytes)
			})
		},
	}

	return cmd
}

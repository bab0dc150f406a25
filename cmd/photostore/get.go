package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var (
		outputPath string
		thumbnail  bool
		kindRaw    string
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write the stored bytes of a photo or its thumbnail",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseBlobID(args[0])
			if err != nil {
				return err
			}
			kind, err := models.ParseBlobKind(kindRaw)
			if err != nil {
				return err
			}
			if thumbnail {
				kind = models.KindThumbnail
			}
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				var record models.BlobRecord
				if kind == models.KindThumbnail {
					record, err = svc.GetDerivative(ctx, id)
				} else {
					record, err = svc.Get(ctx, id)
				}
				if err != nil {
					return err
				}

				if outputPath == "" {
					_, err := stdout.Write(record.Payload)
					return err
				}
				if err := os.WriteFile(outputPath, record.Payload, 0o644); err != nil {
					return err
				}
				if structuredOutput() {
					return writeStructured(record.Metadata())
				}
				return writePlain("wrote %d bytes (%s) to %s\n", len(record.Payload), record.MimeType, outputPath)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&kindRaw, "kind", string(models.KindOriginal), "record to read: original or thumbnail")
	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "shorthand for --kind thumbnail")
	return cmd
}

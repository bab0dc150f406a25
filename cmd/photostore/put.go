package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/models"
	"photostore/internal/payload"
)

type putResult struct {
	ID               models.BlobID `json:"id" yaml:"id"`
	Locator          string        `json:"locator" yaml:"locator"`
	ThumbnailLocator string        `json:"thumbnail_locator,omitempty" yaml:"thumbnail_locator,omitempty"`
}

func newPutCmd(cfg *config.Config) *cobra.Command {
	var (
		uploader    string
		mimeType    string
		noThumbnail bool
	)

	cmd := &cobra.Command{
		Use:   "put <file|->",
		Short: "Store a photo from a file, a data URL file or stdin",
		Args:  requireExactlyArgs(1, "a file path or - is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(uploader) == "" {
				return errors.New("--uploader is required")
			}
			raw, err := readInput(args[0])
			if err != nil {
				return err
			}
			encoded := encodeUpload(raw, mimeType)

			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				id, err := svc.Store(ctx, encoded, uploader, blobstore.WithDerivative(!noThumbnail))
				if err != nil {
					return err
				}
				result := uploadResult(ctx, svc, id)
				if structuredOutput() {
					return writeStructured(result)
				}
				if result.ThumbnailLocator != "" {
					return writePlain("%s %s %s\n", result.ID, result.Locator, result.ThumbnailLocator)
				}
				return writePlain("%s %s\n", result.ID, result.Locator)
			})
		},
	}

	cmd.Flags().StringVarP(&uploader, "uploader", "u", "", "uploader id")
	cmd.Flags().StringVar(&mimeType, "mime", "", "media type of raw input (default: sniffed)")
	cmd.Flags().BoolVar(&noThumbnail, "no-thumbnail", false, "skip thumbnail generation")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// encodeUpload passes data URLs through and wraps raw bytes in one.
func encodeUpload(raw []byte, mimeType string) string {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		return string(trimmed)
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = http.DetectContentType(raw)
	}
	return payload.Encode(mimeType, raw)
}

func uploadResult(ctx context.Context, svc *blobstore.Service, id models.BlobID) putResult {
	result := putResult{ID: id, Locator: blobstore.LocatorFor(id, false)}
	if thumb, err := svc.DerivativeMetadata(ctx, id); err == nil && thumb != nil {
		result.ThumbnailLocator = blobstore.LocatorFor(id, true)
	}
	return result
}

package main

import (
	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/models"
)

type locatorResult struct {
	ID        models.BlobID `json:"id" yaml:"id"`
	Thumbnail bool          `json:"thumbnail" yaml:"thumbnail"`
	Locator   string        `json:"locator" yaml:"locator"`
}

func newLocatorCmd() *cobra.Command {
	var thumbnail bool

	cmd := &cobra.Command{
		Use:   "locator <id|locator>",
		Short: "Print the locator for an id, or the id behind a locator",
		Args:  requireExactlyArgs(1, "an id or locator is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := resolveLocator(args[0], thumbnail)
			if err != nil {
				return err
			}
			if structuredOutput() {
				return writeStructured(result)
			}
			return writePlain("%s\n", result.Locator)
		},
	}

	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "print the thumbnail locator")
	return cmd
}

func resolveLocator(arg string, thumbnail bool) (locatorResult, error) {
	if id, isThumb, err := blobstore.ParseLocator(arg); err == nil {
		return locatorResult{ID: id, Thumbnail: isThumb, Locator: blobstore.LocatorFor(id, isThumb)}, nil
	}
	id, err := models.ParseBlobID(arg)
	if err != nil {
		return locatorResult{}, err
	}
	return locatorResult{ID: id, Thumbnail: thumbnail, Locator: blobstore.LocatorFor(id, thumbnail)}, nil
}

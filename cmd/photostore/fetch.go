package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"photostore/internal/api"
	"photostore/internal/blobstore"
	"photostore/internal/config"
)

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var (
		outputPath string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "fetch <locator>",
		Short: "Download the bytes behind a locator from a running server",
		Args:  requireExactlyArgs(1, "locator is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := blobstore.ParseLocator(args[0]); err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.APIURL
			}

			var w io.Writer = stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			mimeType, n, err := api.NewClient(baseURL).Fetch(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			if outputPath != "" {
				return writePlain("wrote %d bytes (%s) to %s\n", n, mimeType, outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default: api_url)")
	return cmd
}

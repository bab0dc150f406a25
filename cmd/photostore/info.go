package main

import (
	"context"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
)

type infoResult struct {
	DBPath           string `json:"db_path" yaml:"db_path"`
	HashAlgorithm    string `json:"hash_algorithm" yaml:"hash_algorithm"`
	SchemaVersion    int    `json:"schema_version" yaml:"schema_version"`
	AvailableVersion int    `json:"available_version" yaml:"available_version"`
	Originals        int64  `json:"originals" yaml:"originals"`
	Derivatives      int64  `json:"derivatives" yaml:"derivatives"`
	Unreferenced     int64  `json:"unreferenced" yaml:"unreferenced"`
	TotalBytes       int64  `json:"total_bytes" yaml:"total_bytes"`
}

func newInfoCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and store info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				stats, err := svc.Info(ctx)
				if err != nil {
					return err
				}
				resp := infoResult{
					DBPath:           cfg.DBPath,
					HashAlgorithm:    svc.Algorithm(),
					SchemaVersion:    stats.SchemaVersion,
					AvailableVersion: stats.AvailableVersion,
					Originals:        stats.Originals,
					Derivatives:      stats.Derivatives,
					Unreferenced:     stats.Unreferenced,
					TotalBytes:       stats.TotalBytes,
				}

				if structuredOutput() {
					return writeStructured(resp)
				}

				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("hash_algorithm: %s\n", resp.HashAlgorithm)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("originals: %d\n", resp.Originals)
				_ = writePlain("  unreferenced: %d\n", resp.Unreferenced)
				_ = writePlain("thumbnails: %d\n", resp.Derivatives)
				_ = writePlain("total_bytes: %d\n", resp.TotalBytes)
				return nil
			})
		},
	}
	return cmd
}

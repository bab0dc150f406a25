package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var sweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve photos and metadata over HTTP at api_url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			return withService(cmd, cfg, func(ctx context.Context, svc *blobstore.Service) error {
				logger := slog.Default().With("component", "server")
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return server.New(addr, svc, logger).ListenAndServe(gctx)
				})
				if sweep {
					sweeper := blobstore.NewSweeper(svc, cfg.Sweep.Interval, blobstore.SweepOptions{BatchSize: cfg.Sweep.BatchSize})
					g.Go(func() error {
						return sweeper.Run(gctx, func(result blobstore.SweepResult) {
							logger.Info("sweep finished", "deleted", result.Deleted, "skipped", result.Skipped, "reclaimed_bytes", result.ReclaimedBytes)
						})
					})
				}
				return g.Wait()
			})
		},
	}

	cmd.Flags().BoolVar(&sweep, "sweep", false, "run the cleanup sweep every sweep.interval while serving")
	return cmd
}

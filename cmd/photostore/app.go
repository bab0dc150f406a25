package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"photostore/internal/blobstore"
	"photostore/internal/config"
	"photostore/internal/hasher"
	"photostore/internal/store"
)

// withService opens the store, runs fn against a service built from cfg and
// closes both. The service is closed first so background work finishes
// before the database goes away.
func withService(cmd *cobra.Command, cfg *config.Config, fn func(context.Context, *blobstore.Service) error) error {
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return err
	}

	slog.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := blobstore.New(st, h, slog.Default(), serviceOptions(cfg))
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, svc)
}

func serviceOptions(cfg *config.Config) blobstore.Options {
	opts := blobstore.DefaultOptions()
	opts.Derivatives = cfg.Derivatives.Enabled
	opts.AsyncDerivatives = cfg.Derivatives.Async
	opts.DerivativeTimeout = cfg.Derivatives.Timeout
	opts.SweepBatchSize = cfg.Sweep.BatchSize
	opts.SweepLeaseTTL = cfg.Sweep.LeaseTTL
	opts.HashCacheEntries = cfg.Cache.HashEntries
	return opts
}

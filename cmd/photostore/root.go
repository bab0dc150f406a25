package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"photostore/internal/config"
	"photostore/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		outputFormat string
		logLevel     string
		dbPath       string
	)

	cmd := &cobra.Command{
		Use:           "photostore",
		Short:         "Photostore is a content-addressed photo store with thumbnails and reference-counted cleanup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			formatter, err := format.New(outputFormat)
			if err != nil {
				return err
			}
			outputFormatter = formatter

			if path := strings.TrimSpace(dbPath); path != "" {
				cfg.DBPath = path
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&outputFormat, "format", format.Text, "output format: text|json|yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides db_path)")

	cmd.AddCommand(
		newPutCmd(cfg),
		newShowCmd(cfg),
		newGetCmd(cfg),
		newLatestCmd(cfg),
		newDeleteCmd(cfg),
		newRefCmd(cfg),
		newSweepCmd(cfg),
		newBackfillCmd(cfg),
		newImportCmd(cfg),
		newExportCmd(cfg),
		newLocatorCmd(),
		newInfoCmd(cfg),
		newMigrateCmd(cfg),
		newConfigCmd(cfg),
		newServeCmd(cfg),
		newFetchCmd(cfg),
	)

	return cmd
}

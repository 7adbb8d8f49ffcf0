// Package cmd provides the CLI commands for ratecalc.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"freightrate/internal/config"
	"freightrate/internal/logging"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

var (
	verbose     bool
	logFormat   string
	databaseURL string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ratecalc",
	Short: "Estimate ocean-freight container rates",
	Long: `ratecalc estimates the freight rate for one container between two ports
from a base-rate table, market indices and a seasonality factor.

Examples:
  ratecalc calculate --scenario lanes.hcl
  ratecalc calculate --scenario lanes.hcl --origin CNSHA --destination USLAX --format json
  ratecalc migrate --database-url postgres://localhost/freight`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load().Logging
		if verbose {
			cfg.Level = "debug"
		}
		if logFormat != "" {
			cfg.Format = logFormat
		}
		if _, err := logging.Initialize(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	defer logging.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"),
		"Postgres URL for port regions, seasonality and migrations (default $DATABASE_URL)")

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ratecalc version %s\n", Version)
	},
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"freightrate/internal/apperrors"
	"freightrate/internal/config"
	"freightrate/internal/db"
	"freightrate/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(databaseURL) == "" {
			return apperrors.New(apperrors.TypeConfig, "database URL is required (--database-url or DATABASE_URL)")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		pool, err := db.NewPool(ctx, databaseURL, poolOptions(config.Load()))
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		version, err := db.MigrationVersion(ctx, pool)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		logging.Logger.Info("migrations applied", zap.Int64("version", version))
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}

package cli

import (
	"context"
	"fmt"

	"cryptic-hunt/internal/config"
	"cryptic-hunt/internal/infra/postgres"
	"cryptic-hunt/internal/infra/sqlite"
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the configured storage driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, rollback)
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "revert the most recent migration (sqlite only)")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, rollback bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if rollback {
			return fmt.Errorf("rollback is only supported for sqlite")
		}
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("postgres url not configured")
		}
		applied, err := postgres.Migrate(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "migrations", applied)
		return nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		if rollback {
			if err := sqlite.RollbackLast(ctx, db); err != nil {
				return err
			}
			logger.Info("last migration rolled back", "path", cfg.Storage.SQLitePath)
			return nil
		}
		logger.Info("migrations applied", "path", cfg.Storage.SQLitePath)
		return nil

	default:
		return fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
	}
}

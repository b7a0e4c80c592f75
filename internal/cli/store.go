package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cryptic-hunt/internal/app"
	"cryptic-hunt/internal/config"
	"cryptic-hunt/internal/infra/memory"
	"cryptic-hunt/internal/infra/postgres"
	"cryptic-hunt/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lmittmann/tint"
)

// newLogger builds the colourised slog logger used across the process.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// openStore connects to the configured storage driver, migrating it first.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (app.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage; progress is lost on restart")
		return memory.NewStore(), nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.Storage.SQLitePath, err)
		}
		logger.Info("sqlite storage ready", "path", cfg.Storage.SQLitePath)
		return sqlite.NewStore(db), nil

	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		applied, err := postgres.Migrate(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "migrations", applied)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("postgres storage ready")
		return postgres.NewStore(pool), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

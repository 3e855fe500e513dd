package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/platform/migrations"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/platform/sqlite"
	"github.com/phrazzld/taskmanager/internal/redact"
)

// openDatabase connects to the configured database and, when auto-migrate
// is on, applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, migrations.Dialect, error) {
	dialect, err := migrations.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}

	var db *sql.DB
	switch dialect {
	case migrations.SQLite:
		db, err = sqlite.Open(ctx, cfg.URL)
	default:
		db, err = postgres.Open(ctx, cfg.URL, postgres.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	}
	if err != nil {
		return nil, "", fmt.Errorf("opening %s database %s: %w", dialect, redact.URL(cfg.URL), err)
	}

	log.Info("database connection established",
		"driver", string(dialect),
		"url", redact.URL(cfg.URL))

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, db, dialect, log); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("applying migrations: %w", err)
		}
	}
	return db, dialect, nil
}

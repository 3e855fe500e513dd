// Package migrations embeds the database schema for both supported drivers
// and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// Dialect selects the migration set and the goose dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured database driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) goose() goose.Dialect {
	if d == SQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Runner applies the embedded migrations to one database. The caller owns
// the *sql.DB and closes it.
type Runner struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewRunner builds a Runner for db. Verbose mode forwards goose's own
// progress lines to the logger.
func NewRunner(db *sql.DB, dialect Dialect, logger *slog.Logger, verbose bool) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations", "dialect", string(dialect))

	fsys, err := fs.Sub(embedded, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("locating %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(dialect.goose(), db, fsys,
		goose.WithLogger(&slogGooseLogger{logger: logger}),
		goose.WithVerbose(verbose),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}

	return &Runner{provider: provider, logger: logger}, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	start := time.Now()
	results, err := r.provider.Up(ctx)
	for _, res := range results {
		r.logResult(res)
	}
	if err != nil {
		return len(results), fmt.Errorf("applying migrations: %w", err)
	}

	r.logger.Info("migrations applied",
		"count", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return len(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	res, err := r.provider.Down(ctx)
	if res != nil {
		r.logResult(res)
	}
	if err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// Status reports every known migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}
	return statuses, nil
}

// Version returns the current database schema version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

func (r *Runner) logResult(res *goose.MigrationResult) {
	attrs := []any{
		"direction", res.Direction,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if res.Source != nil {
		attrs = append(attrs, "version", res.Source.Version, "path", res.Source.Path)
	}
	if res.Error != nil {
		r.logger.Error("migration failed", append(attrs, "error", res.Error)...)
		return
	}
	r.logger.Debug("migration applied", attrs...)
}

// Up is a convenience wrapper that applies all pending migrations to db.
func Up(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	runner, err := NewRunner(db, dialect, logger, false)
	if err != nil {
		return err
	}

	_, err = runner.Up(ctx)
	return err
}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at info level.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; errors are returned to the
// caller instead.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

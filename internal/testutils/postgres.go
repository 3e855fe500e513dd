package testutils

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/platform/migrations"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/redact"
)

// PostgresURLEnv names the Postgres database used by integration tests.
// Its tables are emptied, so never point it at real data.
const PostgresURLEnv = "TASKMGR_TEST_DATABASE_URL"

// NewPostgresDB opens and migrates the database named by PostgresURLEnv
// and empties its tables before and after the test. The test is skipped
// when the variable is unset.
func NewPostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, url, postgres.DefaultPoolConfig)
	require.NoError(t, err, "opening %s", redact.URL(url))

	require.NoError(t, migrations.Up(ctx, db, migrations.Postgres, DiscardLogger()), "migrating test database")
	truncate(t, db)
	t.Cleanup(func() {
		truncate(t, db)
		_ = db.Close()
	})
	return db
}

func truncate(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), "TRUNCATE tasks, users RESTART IDENTITY CASCADE")
	require.NoError(t, err, "truncating test tables")
}

// ForEachBackend runs fn as a subtest against a fresh SQLite database and,
// when PostgresURLEnv is set, against Postgres.
func ForEachBackend(t *testing.T, fn func(t *testing.T, db *sql.DB)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteDB(t))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, NewPostgresDB(t))
	})
}

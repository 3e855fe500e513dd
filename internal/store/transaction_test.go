package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/store"
	"github.com/phrazzld/taskmanager/internal/testutils"
)

func countUsers(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func insertUser(ctx context.Context, tx *sql.Tx, username string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (employee_code, username, password_hash, display_name, email, is_admin, is_active, created_at)
		VALUES ($1, $2, 'x', $2, '', false, true, CURRENT_TIMESTAMP)`,
		"EMP-"+username, username)
	return err
}

func TestRunInTransaction_Commit(t *testing.T) {
	db := testutils.NewSQLiteDB(t)

	err := store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return insertUser(ctx, tx, "alice")
	})

	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, db))
}

func TestRunInTransaction_FunctionError(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	expected := errors.New("function error")

	err := store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		require.NoError(t, insertUser(ctx, tx, "alice"))
		return expected
	})

	assert.ErrorIs(t, err, expected, "the function error is returned unchanged")
	assert.Equal(t, 0, countUsers(t, db), "insert must be rolled back")
}

func TestRunInTransaction_Panic(t *testing.T) {
	db := testutils.NewSQLiteDB(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			require.NoError(t, insertUser(ctx, tx, "alice"))
			panic("boom")
		})
	})

	assert.Equal(t, 0, countUsers(t, db), "insert must be rolled back after a panic")
}

func TestRunInTransaction_BeginFails(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	require.NoError(t, db.Close())

	called := false
	err := store.RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, store.ErrTransactionFailed)
	assert.False(t, called)
}

func TestRunInTransaction_CanceledContext(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunInTransaction(ctx, db, func(context.Context, *sql.Tx) error { return nil })

	assert.ErrorIs(t, err, store.ErrTransactionFailed)
}

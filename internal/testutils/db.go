package testutils

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/platform/migrations"
	"github.com/phrazzld/taskmanager/internal/platform/sqlite"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteDB opens a migrated database in a temporary directory. The
// database is closed when the test finishes.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "taskmanager.db"))
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(ctx, db, migrations.SQLite, DiscardLogger()), "migrating test database")
	return db
}

// HashPassword hashes with the minimum bcrypt cost to keep tests fast.
func HashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// MustInsertUser writes a user row directly and returns it with its ID set.
// Zero-valued fields get defaults derived from the username.
func MustInsertUser(t *testing.T, db *sql.DB, u domain.User) domain.User {
	t.Helper()

	if u.EmployeeCode == "" {
		u.EmployeeCode = "EMP-" + u.Username
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	if u.PasswordHash == "" {
		u.PasswordHash = HashPassword(t, "password")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	err := db.QueryRowContext(context.Background(), `
		INSERT INTO users (employee_code, username, password_hash, display_name,
			email, is_admin, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		u.EmployeeCode, u.Username, u.PasswordHash, u.DisplayName,
		u.Email, u.IsAdmin, u.IsActive, u.CreatedAt,
	).Scan(&u.ID)
	require.NoError(t, err, "inserting user %s", u.Username)
	return u
}

// MustInsertTask writes a task row directly and returns it with its ID set.
func MustInsertTask(t *testing.T, db *sql.DB, task domain.Task) domain.Task {
	t.Helper()

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Title == "" {
		task.Title = "Task " + task.Code
	}

	var due any
	if task.DueDate != nil {
		due = task.DueDate.UTC()
	}

	err := db.QueryRowContext(context.Background(), `
		INSERT INTO tasks (code, title, description, status, priority,
			reporter_code, assignee_code, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		task.Code, task.Title, task.Description, int(task.Status), int(task.Priority),
		task.ReporterCode, task.AssigneeCode, due, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	require.NoError(t, err, "inserting task %s", task.Code)
	return task
}

// TaskCodes returns the codes of tasks in order.
func TaskCodes(tasks []domain.Task) []string {
	codes := make([]string, len(tasks))
	for i, task := range tasks {
		codes[i] = task.Code
	}
	return codes
}

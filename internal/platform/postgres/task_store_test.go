package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/store"
	"github.com/phrazzld/taskmanager/internal/testutils"
)

func setupTaskStore(t *testing.T, db *sql.DB) *postgres.PostgresTaskStore {
	t.Helper()
	testutils.MustInsertUser(t, db, domain.User{
		Username: "admin", EmployeeCode: "E001", DisplayName: "Ada Admin", IsAdmin: true, IsActive: true,
	})
	testutils.MustInsertUser(t, db, domain.User{
		Username: "bob", EmployeeCode: "E002", DisplayName: "Bob Builder", IsActive: true,
	})
	return postgres.NewPostgresTaskStore(db, testutils.DiscardLogger())
}

func newTask(code, assignee string) *domain.Task {
	return &domain.Task{
		Code:         code,
		Title:        "Title " + code,
		Description:  "Description " + code,
		Status:       domain.StatusNotStarted,
		Priority:     domain.PriorityMedium,
		ReporterCode: "E001",
		AssigneeCode: assignee,
	}
}

func TestPostgresTaskStore_CreateAndGet(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
		task := newTask("T1", "E002")
		task.DueDate = &due

		require.NoError(t, s.Create(ctx, task))
		assert.NotZero(t, task.ID)
		assert.False(t, task.CreatedAt.IsZero())

		got, err := s.GetByCode(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, "Title T1", got.Title)
		assert.Equal(t, "Ada Admin", got.ReporterName)
		assert.Equal(t, "Bob Builder", got.AssigneeName)
		require.NotNil(t, got.DueDate)
		assert.True(t, due.Equal(*got.DueDate), "due date should round-trip: want %v got %v", due, *got.DueDate)
		assert.WithinDuration(t, task.CreatedAt, got.CreatedAt, time.Second)
	})
}

func TestPostgresTaskStore_CreateErrors(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, newTask("T1", "E002")))

		t.Run("duplicate code", func(t *testing.T) {
			err := s.Create(ctx, newTask("T1", "E002"))
			assert.ErrorIs(t, err, store.ErrTaskCodeExists)
			assert.True(t, store.IsDuplicateError(err))
		})

		t.Run("invalid task", func(t *testing.T) {
			task := newTask("T2", "E002")
			task.Title = ""
			err := s.Create(ctx, task)
			assert.ErrorIs(t, err, domain.ErrTaskTitleEmpty)
		})
	})
}

func TestPostgresTaskStore_List(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		testutils.MustInsertTask(t, db, *newTask("T1", "E002"))
		testutils.MustInsertTask(t, db, *newTask("T2", "E001"))
		testutils.MustInsertTask(t, db, *newTask("T3", "E002"))
		// Assignee with no matching user still lists, with an empty display name
		testutils.MustInsertTask(t, db, *newTask("T4", "E999"))

		t.Run("all tasks ordered by id", func(t *testing.T) {
			tasks, err := s.List(ctx, store.TaskFilter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"T1", "T2", "T3", "T4"}, testutils.TaskCodes(tasks))
			assert.Equal(t, "", tasks[3].AssigneeName)
		})

		t.Run("filtered by assignee", func(t *testing.T) {
			tasks, err := s.List(ctx, store.TaskFilter{AssigneeCode: "E002"})
			require.NoError(t, err)
			assert.Equal(t, []string{"T1", "T3"}, testutils.TaskCodes(tasks))
		})

		t.Run("empty result is non-nil", func(t *testing.T) {
			tasks, err := s.List(ctx, store.TaskFilter{AssigneeCode: "nobody"})
			require.NoError(t, err)
			assert.NotNil(t, tasks)
			assert.Empty(t, tasks)
		})
	})
}

func TestPostgresTaskStore_Update(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		task := newTask("T1", "E002")
		require.NoError(t, s.Create(ctx, task))

		task.Status = domain.StatusCompleted
		task.Priority = domain.PriorityHigh
		task.Title = "Renamed"
		require.NoError(t, s.Update(ctx, task))

		got, err := s.GetByCode(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		assert.Equal(t, domain.PriorityHigh, got.Priority)
		assert.Equal(t, "Renamed", got.Title)
		assert.Nil(t, got.DueDate)

		t.Run("unknown code", func(t *testing.T) {
			err := s.Update(ctx, newTask("missing", "E002"))
			assert.ErrorIs(t, err, store.ErrTaskNotFound)
		})
	})
}

func TestPostgresTaskStore_Delete(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, newTask("T1", "E002")))

		exists, err := s.CodeExists(ctx, "T1")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, s.Delete(ctx, "T1"))

		exists, err = s.CodeExists(ctx, "T1")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = s.GetByCode(ctx, "T1")
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		err = s.Delete(ctx, "T1")
		assert.True(t, store.IsNotFoundError(err))
	})
}

func TestPostgresTaskStore_WithTx(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := setupTaskStore(t, db)
		ctx := context.Background()

		boom := errors.New("boom")
		err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			if err := s.WithTx(tx).Create(ctx, newTask("T1", "E002")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		exists, err := s.CodeExists(ctx, "T1")
		require.NoError(t, err)
		assert.False(t, exists, "rolled back insert must not be visible")

		err = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).Create(ctx, newTask("T1", "E002"))
		})
		require.NoError(t, err)

		exists, err = s.CodeExists(ctx, "T1")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

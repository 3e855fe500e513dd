package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/store"
	"github.com/phrazzld/taskmanager/internal/testutils"
)

func newUser(t *testing.T, code, username string, admin bool) *domain.User {
	t.Helper()
	u, err := domain.NewUser(code, username, "secret", "Name "+username, admin)
	require.NoError(t, err)
	u.PasswordHash = testutils.HashPassword(t, "secret")
	return u
}

func TestPostgresUserStore_CreateAndGet(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
		ctx := context.Background()

		u := newUser(t, "E001", "alice", true)
		require.NoError(t, s.Create(ctx, u))
		assert.NotZero(t, u.ID)
		assert.Empty(t, u.Password, "plaintext password must be cleared")

		byName, err := s.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.True(t, byName.IsAdmin)
		assert.True(t, byName.IsActive)
		assert.Equal(t, u.PasswordHash, byName.PasswordHash)

		byID, err := s.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "E001", byID.EmployeeCode)

		_, err = s.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestPostgresUserStore_CreateDuplicates(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, newUser(t, "E001", "alice", false)))

		err := s.Create(ctx, newUser(t, "E002", "alice", false))
		assert.ErrorIs(t, err, store.ErrUsernameExists)

		err = s.Create(ctx, newUser(t, "E001", "bob", false))
		assert.ErrorIs(t, err, store.ErrEmployeeCodeExists)

		t.Run("missing hash", func(t *testing.T) {
			u := newUser(t, "E003", "carol", false)
			u.PasswordHash = ""
			assert.ErrorIs(t, s.Create(ctx, u), domain.ErrEmptyHashedPassword)
		})
	})
}

func TestPostgresUserStore_ListAndExists(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
		ctx := context.Background()

		testutils.MustInsertUser(t, db, domain.User{Username: "a", IsActive: true})
		testutils.MustInsertUser(t, db, domain.User{Username: "b", IsActive: false})
		testutils.MustInsertUser(t, db, domain.User{Username: "c", IsActive: true, IsAdmin: true})

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].Username)
		assert.Equal(t, "c", all[2].Username)

		active, err := s.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "a", active[0].Username)
		assert.Equal(t, "c", active[1].Username)
		assert.True(t, active[1].IsAdmin)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		exists, err := s.UsernameExists(ctx, "b")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.EmployeeCodeExists(ctx, "EMP-c")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.EmployeeCodeExists(ctx, "EMP-z")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestPostgresUserStore_Delete(t *testing.T) {
	testutils.ForEachBackend(t, func(t *testing.T, db *sql.DB) {
		s := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
		ctx := context.Background()

		u := testutils.MustInsertUser(t, db, domain.User{Username: "gone", IsActive: true})

		require.NoError(t, s.Delete(ctx, u.ID))

		_, err := s.GetByID(ctx, u.ID)
		assert.ErrorIs(t, err, store.ErrUserNotFound)

		assert.ErrorIs(t, s.Delete(ctx, u.ID), store.ErrUserNotFound)
		assert.ErrorIs(t, s.Delete(ctx, 0), store.ErrInvalidEntity)
	})
}

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/mocks"
	"github.com/phrazzld/taskmanager/internal/platform/postgres"
	"github.com/phrazzld/taskmanager/internal/service/auth"
	"github.com/phrazzld/taskmanager/internal/testutils"
)

type failingLookup struct{ err error }

func (f failingLookup) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, f.err
}

func TestAuthenticator_Login(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	users := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
	a := auth.NewAuthenticator(users, auth.NewBcryptVerifier(4), testutils.DiscardLogger())

	ada := testutils.MustInsertUser(t, db, domain.User{
		Username: "ada", EmployeeCode: "E001", DisplayName: "Ada Admin",
		PasswordHash: testutils.HashPassword(t, "s3cret"), IsAdmin: true, IsActive: true,
	})
	testutils.MustInsertUser(t, db, domain.User{
		Username: "gone", PasswordHash: testutils.HashPassword(t, "s3cret"), IsActive: false,
	})

	t.Run("success", func(t *testing.T) {
		s, err := a.Login(context.Background(), " ada ", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, domain.Session{
			UserID: ada.ID, Username: "ada", EmployeeCode: "E001", DisplayName: "Ada Admin", IsAdmin: true,
		}, s)
	})

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"empty username", "  ", "s3cret", auth.ErrEmptyCredentials},
		{"empty password", "ada", "", auth.ErrEmptyCredentials},
		{"unknown user", "nobody", "s3cret", auth.ErrInvalidCredentials},
		{"wrong password", "ada", "nope", auth.ErrInvalidCredentials},
		{"inactive user", "gone", "s3cret", auth.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Login(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("messages", func(t *testing.T) {
		assert.Equal(t, "Username or password cannot be empty!", auth.ErrEmptyCredentials.Error())
		assert.Equal(t, "Invalid username or password.", auth.ErrInvalidCredentials.Error())
	})
}

func TestAuthenticator_LookupError(t *testing.T) {
	boom := errors.New("db down")
	a := auth.NewAuthenticator(failingLookup{err: boom}, auth.NewBcryptVerifier(4), testutils.DiscardLogger())

	_, err := a.Login(context.Background(), "ada", "pw")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthenticator_Session(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	users := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
	a := auth.NewAuthenticator(users, auth.NewBcryptVerifier(4), testutils.DiscardLogger())

	testutils.MustInsertUser(t, db, domain.User{Username: "dev", IsActive: true})

	s, err := a.Session(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "dev", s.Username)

	_, err = a.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestBcryptVerifier(t *testing.T) {
	v := auth.NewBcryptVerifier(4)

	hash, err := v.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, v.Compare(hash, "correct horse"))
	assert.Error(t, v.Compare(hash, "battery staple"))

	t.Run("out of range cost uses default", func(t *testing.T) {
		hash, err := auth.NewBcryptVerifier(99).Hash("pw")
		require.NoError(t, err)
		assert.Contains(t, hash, "$10$")
	})
}

func TestAuthenticator_InactiveSkipsPasswordCheck(t *testing.T) {
	db := testutils.NewSQLiteDB(t)
	users := postgres.NewPostgresUserStore(db, testutils.DiscardLogger())
	verifier := &mocks.MockPasswordVerifier{ShouldSucceed: true}
	a := auth.NewAuthenticator(users, verifier, testutils.DiscardLogger())

	testutils.MustInsertUser(t, db, domain.User{Username: "gone", IsActive: false})
	testutils.MustInsertUser(t, db, domain.User{Username: "here", IsActive: true})

	_, err := a.Login(context.Background(), "gone", "pw")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Zero(t, verifier.CompareCallCount)

	_, err = a.Login(context.Background(), "here", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, verifier.CompareCallCount)
	assert.Equal(t, "pw", verifier.CompareCalledWith.Password)
}

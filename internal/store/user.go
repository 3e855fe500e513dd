package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user and sets its ID. The caller provides the bcrypt
	// hash in PasswordHash; the plaintext Password is never stored.
	// Returns ErrUsernameExists or ErrEmployeeCodeExists on conflicts.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by login name.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// List returns every user ordered by ID.
	List(ctx context.Context) ([]domain.User, error)

	// ListActive returns the active users ordered by ID.
	ListActive(ctx context.Context) ([]domain.User, error)

	// Delete removes a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored users.
	Count(ctx context.Context) (int, error)

	EmployeeCodeExists(ctx context.Context, code string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// WithTx returns a UserStore that runs its queries in tx.
	WithTx(tx *sql.Tx) UserStore
}

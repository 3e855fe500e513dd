package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// TaskFilter narrows a task listing. The zero value lists every task.
type TaskFilter struct {
	// AssigneeCode restricts the listing to tasks assigned to this employee.
	AssigneeCode string
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// List returns the tasks matching filter ordered by ID, with reporter and
	// assignee display names resolved.
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// GetByCode retrieves a task by its business code.
	// Returns ErrTaskNotFound if no task has that code.
	GetByCode(ctx context.Context, code string) (*domain.Task, error)

	// Create saves a new task and sets its ID.
	// Returns ErrTaskCodeExists if the code is already used.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// Update rewrites the mutable fields of the task identified by task.Code
	// and refreshes UpdatedAt.
	// Returns ErrTaskNotFound if no task has that code.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes the task with the given code.
	// Returns ErrTaskNotFound if no task has that code.
	Delete(ctx context.Context, code string) error

	// CodeExists reports whether a task with the given code exists.
	CodeExists(ctx context.Context, code string) (bool, error)

	// WithTx returns a TaskStore that runs its queries in tx.
	WithTx(tx *sql.Tx) TaskStore
}

package view

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/events"
)

// TaskSource lists the tasks visible to the session.
type TaskSource interface {
	List(ctx context.Context, session domain.Session) ([]domain.Task, error)
}

// UserSource lists user accounts.
type UserSource interface {
	List(ctx context.Context) ([]domain.User, error)
}

// TaskList is the live task list of one session.
type TaskList = Collection[domain.Task]

// UserList is the live user list.
type UserList = Collection[domain.User]

// NewTaskList loads the session's tasks and reloads them on TaskChanged.
func NewTaskList(
	ctx context.Context,
	subscriber events.Subscriber,
	tasks TaskSource,
	session domain.Session,
	logger *slog.Logger,
) (*TaskList, error) {
	return NewCollection[domain.Task](ctx, "tasks", domain.TaskChanged, subscriber,
		func(ctx context.Context) ([]domain.Task, error) {
			return tasks.List(ctx, session)
		}, logger)
}

// NewUserList loads all users and reloads them on UserChanged.
func NewUserList(
	ctx context.Context,
	subscriber events.Subscriber,
	users UserSource,
	logger *slog.Logger,
) (*UserList, error) {
	return NewCollection[domain.User](ctx, "users", domain.UserChanged, subscriber, users.List, logger)
}

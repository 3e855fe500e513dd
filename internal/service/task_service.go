package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/store"
)

// TaskService implements the task use cases for a logged-in session.
type TaskService struct {
	tasks    store.TaskStore
	users    store.UserStore
	db       *sql.DB
	notifier Notifier
	logger   *slog.Logger
}

// NewTaskService creates a TaskService. A nil notifier disables broadcasts.
func NewTaskService(
	tasks store.TaskStore,
	users store.UserStore,
	db *sql.DB,
	notifier Notifier,
	logger *slog.Logger,
) *TaskService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TaskService{
		tasks:    tasks,
		users:    users,
		db:       db,
		notifier: notifier,
		logger:   logger.With("component", "task_service"),
	}
}

// List returns every task for administrators and only the tasks assigned
// to the session's employee code otherwise.
func (s *TaskService) List(ctx context.Context, session domain.Session) ([]domain.Task, error) {
	filter := store.TaskFilter{}
	if !session.IsAdmin {
		filter.AssigneeCode = session.EmployeeCode
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err, "user_id", session.UserID)
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns the task with the given code if the session may see it.
func (s *TaskService) Get(ctx context.Context, session domain.Session, code string) (*domain.Task, error) {
	task, err := s.tasks.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, mapTaskError(err)
	}
	if !session.IsAdmin && task.AssigneeCode != session.EmployeeCode {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// Create stores a new task. Only administrators may create tasks. The code
// must be unused, the reporter an active administrator and the assignee an
// active user.
func (s *TaskService) Create(ctx context.Context, session domain.Session, task *domain.Task) error {
	if !session.IsAdmin {
		s.logger.Warn("non-admin attempted to create a task", "user_id", session.UserID)
		return ErrForbidden
	}

	task.Code = strings.TrimSpace(task.Code)
	task.Title = strings.TrimSpace(task.Title)
	if err := task.Validate(); err != nil {
		return err
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		exists, err := txTasks.CodeExists(ctx, task.Code)
		if err != nil {
			return err
		}
		if exists {
			return ErrTaskCodeExists
		}
		if err := s.checkPeople(ctx, s.users.WithTx(tx), task); err != nil {
			return err
		}
		return txTasks.Create(ctx, task)
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskCodeExists) {
			err = ErrTaskCodeExists
		}
		s.logger.Debug("task create rejected", "error", err, "task_code", task.Code)
		return err
	}

	s.logger.Info("task created",
		"task_code", task.Code,
		"assignee_code", task.AssigneeCode,
		"user_id", session.UserID)
	s.notifier.NotifyTaskChanged(ctx)
	return nil
}

// Update saves changes to the task identified by changes.Code.
// Administrators may change every field. The assignee may change only the
// status and description; other fields keep their stored values.
func (s *TaskService) Update(ctx context.Context, session domain.Session, changes *domain.Task) error {
	code := strings.TrimSpace(changes.Code)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)

		current, err := txTasks.GetByCode(ctx, code)
		if err != nil {
			return mapTaskError(err)
		}

		var next domain.Task
		switch {
		case session.IsAdmin:
			next = *changes
			next.Code = code
			next.ID = current.ID
			next.CreatedAt = current.CreatedAt
			if err := next.Validate(); err != nil {
				return err
			}
			if err := s.checkPeople(ctx, s.users.WithTx(tx), &next); err != nil {
				return err
			}
		case current.AssigneeCode == session.EmployeeCode:
			next = *current
			next.Status = changes.Status
			next.Description = changes.Description
		default:
			return ErrForbidden
		}

		if err := txTasks.Update(ctx, &next); err != nil {
			return mapTaskError(err)
		}
		*changes = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			s.logger.Warn("task update forbidden", "task_code", code, "user_id", session.UserID)
		} else {
			s.logger.Debug("task update rejected", "error", err, "task_code", code)
		}
		return err
	}

	s.logger.Info("task updated", "task_code", code, "user_id", session.UserID)
	s.notifier.NotifyTaskChanged(ctx)
	return nil
}

// Delete removes a task. Only administrators may delete tasks.
func (s *TaskService) Delete(ctx context.Context, session domain.Session, code string) error {
	if !session.IsAdmin {
		s.logger.Warn("non-admin attempted to delete a task", "user_id", session.UserID)
		return ErrForbidden
	}

	code = strings.TrimSpace(code)
	if err := s.tasks.Delete(ctx, code); err != nil {
		err = mapTaskError(err)
		if !errors.Is(err, ErrTaskNotFound) {
			s.logger.Error("failed to delete task", "error", err, "task_code", code)
		}
		return err
	}

	s.logger.Info("task deleted", "task_code", code, "user_id", session.UserID)
	s.notifier.NotifyTaskChanged(ctx)
	return nil
}

// checkPeople verifies the task's reporter and assignee against the active
// users visible through users.
func (s *TaskService) checkPeople(ctx context.Context, users store.UserStore, task *domain.Task) error {
	active, err := users.ListActive(ctx)
	if err != nil {
		return err
	}

	var reporterOK, assigneeOK bool
	for _, u := range active {
		if u.EmployeeCode == task.ReporterCode && u.IsAdmin {
			reporterOK = true
		}
		if u.EmployeeCode == task.AssigneeCode {
			assigneeOK = true
		}
	}
	if !reporterOK {
		return ErrInvalidReporter
	}
	if !assigneeOK {
		return ErrInvalidAssignee
	}
	return nil
}

func mapTaskError(err error) error {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, store.ErrTaskCodeExists):
		return ErrTaskCodeExists
	default:
		return err
	}
}

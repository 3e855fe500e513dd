package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
	"github.com/phrazzld/taskmanager/internal/store"
)

// PostgresTaskStore implements store.TaskStore. Queries use only standard SQL
// with $N placeholders, so the same store serves the embedded SQLite database.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store over a database connection or
// transaction managed by the caller. If logger is nil, the default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `
	t.id, t.code, t.title, t.description, t.status, t.priority,
	t.reporter_code, t.assignee_code,
	COALESCE(r.display_name, ''), COALESCE(a.display_name, ''),
	t.due_date, t.created_at, t.updated_at`

const taskFrom = `
	FROM tasks t
	LEFT JOIN users r ON r.employee_code = t.reporter_code
	LEFT JOIN users a ON a.employee_code = t.assignee_code`

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + taskColumns + taskFrom
	var args []any
	if filter.AssigneeCode != "" {
		query += " WHERE t.assignee_code = $1"
		args = append(args, filter.AssigneeCode)
	}
	query += " ORDER BY t.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("assignee_code", filter.AssigneeCode))
		return nil, store.NewStoreError("task", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", "list", "scan failed", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "row iteration failed", MapError(err))
	}

	log.Debug("listed tasks",
		slog.Int("count", len(tasks)),
		slog.String("assignee_code", filter.AssigneeCode))
	return tasks, nil
}

// GetByCode implements store.TaskStore.GetByCode.
func (s *PostgresTaskStore) GetByCode(ctx context.Context, code string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + taskColumns + taskFrom + " WHERE t.code = $1"

	task, err := scanTask(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_code", code))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_code", code))
		return nil, store.NewStoreError("task", "get", "query failed", MapError(err))
	}

	return task, nil
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_code", task.Code))
		return err
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	query := `
		INSERT INTO tasks (code, title, description, status, priority,
			reporter_code, assignee_code, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		task.Code,
		task.Title,
		task.Description,
		int(task.Status),
		int(task.Priority),
		task.ReporterCode,
		task.AssigneeCode,
		nullableTime(task.DueDate),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	).Scan(&task.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("task code already exists", slog.String("task_code", task.Code))
			return store.ErrTaskCodeExists
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_code", task.Code))
		return store.NewStoreError("task", "create", "insert failed", MapError(err))
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("task_code", task.Code),
		slog.String("assignee_code", task.AssigneeCode))
	return nil
}

// Update implements store.TaskStore.Update.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_code", task.Code))
		return err
	}

	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
			reporter_code = $5, assignee_code = $6, due_date = $7, updated_at = $8
		WHERE code = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		int(task.Status),
		int(task.Priority),
		task.ReporterCode,
		task.AssigneeCode,
		nullableTime(task.DueDate),
		task.UpdatedAt,
		task.Code,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_code", task.Code))
		return store.NewStoreError("task", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Debug("task not found for update", slog.String("task_code", task.Code))
		return err
	}

	log.Info("task updated",
		slog.String("task_code", task.Code),
		slog.String("status", task.Status.String()))
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, code string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE code = $1`, code)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_code", code))
		return store.NewStoreError("task", "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Debug("task not found for delete", slog.String("task_code", code))
		return err
	}

	log.Info("task deleted", slog.String("task_code", code))
	return nil
}

// CodeExists implements store.TaskStore.CodeExists.
func (s *PostgresTaskStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("task", "exists", "query failed", MapError(err))
	}
	return exists, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		status   int
		priority int
		due      sql.NullTime
	)

	err := row.Scan(
		&task.ID,
		&task.Code,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&task.ReporterCode,
		&task.AssigneeCode,
		&task.ReporterName,
		&task.AssigneeName,
		&due,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	if due.Valid {
		d := due.Time
		task.DueDate = &d
	}
	if !task.Status.Valid() || !task.Priority.Valid() {
		return nil, fmt.Errorf("%w: task %s has status %d, priority %d",
			store.ErrInvalidEntity, task.Code, status, priority)
	}

	return &task, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
	"github.com/phrazzld/taskmanager/internal/store"
)

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a user store over a database connection or
// transaction managed by the caller. If logger is nil, the default logger is used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

const userColumns = `id, employee_code, username, password_hash, display_name,
	email, is_admin, is_active, created_at`

// Create implements store.UserStore.Create.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("username", user.Username))
		return err
	}
	if user.PasswordHash == "" {
		return domain.ErrEmptyHashedPassword
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (employee_code, username, password_hash, display_name,
			email, is_admin, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		user.EmployeeCode,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.Email,
		user.IsAdmin,
		user.IsActive,
		user.CreatedAt.UTC(),
	).Scan(&user.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			dupErr := duplicateUserError(err)
			log.Warn("user already exists",
				slog.String("username", user.Username),
				slog.String("employee_code", user.EmployeeCode),
				slog.String("reason", dupErr.Error()))
			return dupErr
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("username", user.Username))
		return store.NewStoreError("user", "create", "insert failed", MapError(err))
	}

	// The plaintext password is never kept once the user is stored
	user.Password = ""

	log.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("is_admin", user.IsAdmin))
	return nil
}

func duplicateUserError(err error) error {
	constraint := uniqueConstraint(err)
	switch {
	case strings.Contains(constraint, "employee_code"):
		return store.ErrEmployeeCodeExists
	case strings.Contains(constraint, "username"):
		return store.ErrUsernameExists
	default:
		return MapError(err)
	}
}

// GetByID implements store.UserStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetByUsername implements store.UserStore.GetByUsername.
func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getOne(ctx, "username = $1", username)
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + userColumns + " FROM users WHERE " + where
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.Any("key", arg))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user", slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "get", "query failed", MapError(err))
	}
	return user, nil
}

// List implements store.UserStore.List.
func (s *PostgresUserStore) List(ctx context.Context) ([]domain.User, error) {
	return s.list(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
}

// ListActive implements store.UserStore.ListActive.
func (s *PostgresUserStore) ListActive(ctx context.Context) ([]domain.User, error) {
	return s.list(ctx, "SELECT "+userColumns+" FROM users WHERE is_active = $1 ORDER BY id", true)
}

func (s *PostgresUserStore) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list users", slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, store.NewStoreError("user", "list", "scan failed", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("user", "list", "row iteration failed", MapError(err))
	}

	log.Debug("listed users", slog.Int("count", len(users)))
	return users, nil
}

// Delete implements store.UserStore.Delete.
func (s *PostgresUserStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if id <= 0 {
		return store.NewStoreError("user", "delete", "id must be positive", store.ErrInvalidEntity)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.Int64("user_id", id))
		return store.NewStoreError("user", "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		log.Debug("user not found for delete", slog.Int64("user_id", id))
		return err
	}

	log.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

// Count implements store.UserStore.Count.
func (s *PostgresUserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, store.NewStoreError("user", "count", "query failed", MapError(err))
	}
	return n, nil
}

// EmployeeCodeExists implements store.UserStore.EmployeeCodeExists.
func (s *PostgresUserStore) EmployeeCodeExists(ctx context.Context, code string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE employee_code = $1)`, code)
}

// UsernameExists implements store.UserStore.UsernameExists.
func (s *PostgresUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *PostgresUserStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, store.NewStoreError("user", "exists", "query failed", MapError(err))
	}
	return exists, nil
}

// WithTx implements store.UserStore.WithTx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.EmployeeCode,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Email,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

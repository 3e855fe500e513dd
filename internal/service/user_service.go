package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/service/auth"
	"github.com/phrazzld/taskmanager/internal/store"
)

// NewUserInput carries the fields an administrator enters for a new account.
type NewUserInput struct {
	EmployeeCode string
	Username     string
	Password     string
	DisplayName  string
	Email        string
	IsAdmin      bool
}

// UserService implements account management.
type UserService struct {
	userStore store.UserStore
	hasher    auth.PasswordHasher
	notifier  Notifier
	logger    *slog.Logger
	db        *sql.DB
}

// NewUserService creates a UserService. A nil notifier disables broadcasts.
func NewUserService(
	userStore store.UserStore,
	hasher auth.PasswordHasher,
	db *sql.DB,
	notifier Notifier,
	logger *slog.Logger,
) *UserService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &UserService{
		userStore: userStore,
		hasher:    hasher,
		notifier:  notifier,
		db:        db,
		logger:    logger.With("component", "user_service"),
	}
}

// List returns every account ordered by ID.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.userStore.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Reporters returns the active administrators, the users who may report tasks.
func (s *UserService) Reporters(ctx context.Context) ([]domain.User, error) {
	return s.activeWhere(ctx, func(u domain.User) bool { return u.IsAdmin })
}

// Assignees returns the active non-administrators.
func (s *UserService) Assignees(ctx context.Context) ([]domain.User, error) {
	return s.activeWhere(ctx, func(u domain.User) bool { return !u.IsAdmin })
}

func (s *UserService) activeWhere(ctx context.Context, keep func(domain.User) bool) ([]domain.User, error) {
	active, err := s.userStore.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	out := make([]domain.User, 0, len(active))
	for _, u := range active {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Create adds an account. Only administrators may create users.
func (s *UserService) Create(ctx context.Context, session domain.Session, in NewUserInput) (*domain.User, error) {
	if !session.IsAdmin {
		s.logger.Warn("non-admin attempted to create a user", "user_id", session.UserID)
		return nil, ErrForbidden
	}

	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		"user_id", user.ID,
		"username", user.Username,
		"admin", user.IsAdmin,
		"created_by", session.UserID)
	s.notifier.NotifyUserChanged(ctx)
	return user, nil
}

func (s *UserService) create(ctx context.Context, in NewUserInput) (*domain.User, error) {
	user, err := domain.NewUser(in.EmployeeCode, in.Username, in.Password, in.DisplayName, in.IsAdmin)
	if err != nil {
		return nil, err
	}
	user.Email = in.Email
	if err := user.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err, "username", user.Username)
		return nil, err
	}
	user.PasswordHash = hash

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		exists, err := txStore.EmployeeCodeExists(ctx, user.EmployeeCode)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmployeeCodeExists
		}
		exists, err = txStore.UsernameExists(ctx, user.Username)
		if err != nil {
			return err
		}
		if exists {
			return ErrUsernameExists
		}
		return txStore.Create(ctx, user)
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUsernameExists):
			err = ErrUsernameExists
		case errors.Is(err, store.ErrEmployeeCodeExists):
			err = ErrEmployeeCodeExists
		}
		if errors.Is(err, ErrUsernameExists) || errors.Is(err, ErrEmployeeCodeExists) {
			s.logger.Debug("user create rejected", "error", err, "username", user.Username)
		} else {
			s.logger.Error("failed to save user", "error", err, "username", user.Username)
		}
		return nil, err
	}
	return user, nil
}

// Delete removes an account. Only administrators may delete users, and
// never their own account.
func (s *UserService) Delete(ctx context.Context, session domain.Session, userID int64) error {
	if !session.IsAdmin {
		s.logger.Warn("non-admin attempted to delete a user", "user_id", session.UserID)
		return ErrForbidden
	}
	if userID == session.UserID {
		return ErrCannotDeleteSelf
	}

	if err := s.userStore.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrInvalidEntity) {
			return ErrUserNotFound
		}
		s.logger.Error("failed to delete user", "error", err, "target_id", userID)
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("user deleted", "target_id", userID, "deleted_by", session.UserID)
	s.notifier.NotifyUserChanged(ctx)
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no account exists.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, in NewUserInput) (bool, error) {
	n, err := s.userStore.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if in.Password == "" {
		return false, fmt.Errorf("no users exist and no bootstrap admin password is configured: %w", domain.ErrPasswordEmpty)
	}

	in.IsAdmin = true
	user, err := s.create(ctx, in)
	if err != nil {
		return false, fmt.Errorf("creating bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", "user_id", user.ID, "username", user.Username)
	return true, nil
}

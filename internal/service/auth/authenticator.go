package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/store"
)

// UserLookup is the part of store.UserStore the authenticator needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// Authenticator checks console login credentials.
type Authenticator struct {
	users    UserLookup
	verifier PasswordVerifier
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserLookup, verifier PasswordVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		users:    users,
		verifier: verifier,
		logger:   logger.With("component", "authenticator"),
	}
}

// Login returns the session of the active user matching username and
// password. Unknown, inactive and mismatched users all yield
// ErrInvalidCredentials so the caller cannot tell them apart.
func (a *Authenticator) Login(ctx context.Context, username, password string) (domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Session{}, ErrEmptyCredentials
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			a.logger.Info("login failed: unknown user", "username", username)
			return domain.Session{}, ErrInvalidCredentials
		}
		a.logger.Error("login failed: user lookup", "error", err, "username", username)
		return domain.Session{}, fmt.Errorf("looking up user: %w", err)
	}

	if !user.IsActive {
		a.logger.Info("login failed: inactive user", "username", username)
		return domain.Session{}, ErrInvalidCredentials
	}

	if err := a.verifier.Compare(user.PasswordHash, password); err != nil {
		a.logger.Info("login failed: password mismatch", "username", username)
		return domain.Session{}, ErrInvalidCredentials
	}

	a.logger.Info("user logged in", "username", username, "user_id", user.ID, "admin", user.IsAdmin)
	return domain.SessionFor(user), nil
}

// Session returns the session of the named active user without checking a
// password. It backs the debug auto-login.
func (a *Authenticator) Session(ctx context.Context, username string) (domain.Session, error) {
	user, err := a.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, fmt.Errorf("looking up user: %w", err)
	}
	if !user.IsActive {
		return domain.Session{}, ErrInvalidCredentials
	}
	a.logger.Warn("debug auto-login", "username", user.Username)
	return domain.SessionFor(user), nil
}

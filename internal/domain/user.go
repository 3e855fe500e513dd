package domain

import (
	"net/mail"
	"strings"
	"time"
)

// User is an account that can log in to the application. Admins manage users
// and report tasks; regular users are task assignees.
type User struct {
	ID           int64
	EmployeeCode string
	Username     string
	Password     string // Plaintext, only set while creating an account
	PasswordHash string // Never printed or logged
	DisplayName  string
	Email        string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
}

// NewUser creates an active user from the given account details and validates
// it. The caller hashes Password before the user is stored.
func NewUser(employeeCode, username, password, displayName string, isAdmin bool) (*User, error) {
	user := &User{
		EmployeeCode: strings.TrimSpace(employeeCode),
		Username:     strings.TrimSpace(username),
		Password:     password,
		DisplayName:  strings.TrimSpace(displayName),
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks that the user has the fields required for storage.
func (u *User) Validate() error {
	if strings.TrimSpace(u.EmployeeCode) == "" {
		return ErrEmployeeCodeEmpty
	}
	if strings.TrimSpace(u.Username) == "" {
		return ErrUsernameEmpty
	}
	if strings.TrimSpace(u.DisplayName) == "" {
		return ErrDisplayNameEmpty
	}

	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return ErrInvalidEmail
		}
	}

	if u.Password != "" {
		// bcrypt ignores everything past 72 bytes
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.PasswordHash == "" {
		return ErrPasswordEmpty
	}

	return nil
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Session is the authenticated principal of a running client.
type Session struct {
	UserID       int64
	Username     string
	EmployeeCode string
	DisplayName  string
	IsAdmin      bool
}

// SessionFor builds the session for an authenticated user.
func SessionFor(u *User) Session {
	return Session{
		UserID:       u.ID,
		Username:     u.Username,
		EmployeeCode: u.EmployeeCode,
		DisplayName:  u.Name(),
		IsAdmin:      u.IsAdmin,
	}
}

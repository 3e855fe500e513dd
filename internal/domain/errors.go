package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Specific validation errors below wrap it, so errors.Is(err, ErrValidation)
	// holds for all of them.
	ErrValidation = errors.New("validation failed")
)

// Task validation errors. Messages match what the console shows the user.
var (
	ErrTaskCodeEmpty     = validationError("code must not be empty")
	ErrTaskCodeTooLong   = validationError("code must be at most 50 characters")
	ErrTaskTitleEmpty    = validationError("title must not be empty")
	ErrTaskTitleTooLong  = validationError("title must be at most 200 characters")
	ErrInvalidStatus     = validationError("invalid status value")
	ErrInvalidPriority   = validationError("invalid priority value")
	ErrReporterRequired  = validationError("reporter must be selected")
	ErrAssigneeRequired  = validationError("assignee must be selected")
	ErrDueBeforeCreation = validationError("due date must not be before the creation date")
)

// User validation errors.
var (
	ErrEmployeeCodeEmpty   = validationError("employee code must not be empty")
	ErrUsernameEmpty       = validationError("username must not be empty")
	ErrDisplayNameEmpty    = validationError("display name must not be empty")
	ErrPasswordEmpty       = validationError("password must not be empty")
	ErrPasswordTooLong     = validationError("password must be at most 72 bytes")
	ErrEmptyHashedPassword = validationError("hashed password cannot be empty")
	ErrInvalidEmail        = validationError("invalid email format")
)

// fieldError is a validation failure that also matches ErrValidation.
type fieldError struct {
	msg string
}

func validationError(msg string) error {
	return &fieldError{msg: msg}
}

func (e *fieldError) Error() string { return e.msg }

// Is reports whether target is ErrValidation, so callers can treat every
// field error as a validation failure.
func (e *fieldError) Is(target error) bool {
	return target == ErrValidation
}

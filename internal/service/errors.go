package service

import "errors"

// Service errors. Messages are printed to the console user, so they are
// phrased for people rather than logs.
var (
	// ErrForbidden means the session may not perform the operation.
	ErrForbidden = errors.New("you are not allowed to do that")

	ErrTaskCodeExists     = errors.New("task code already exists")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmployeeCodeExists = errors.New("employee code already exists")

	// ErrInvalidReporter means the reporter is not an active administrator.
	ErrInvalidReporter = errors.New("reporter must be an active administrator")

	// ErrInvalidAssignee means the assignee is not an active user.
	ErrInvalidAssignee = errors.New("assignee must be an active user")

	ErrTaskNotFound     = errors.New("task not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrCannotDeleteSelf = errors.New("you cannot delete your own account")
)

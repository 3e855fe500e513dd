package notify

import (
	"errors"
	"fmt"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// ErrClientClosed is returned by Start after Close.
var ErrClientClosed = errors.New("notification client is closed")

// ConnectionError describes a failed dial or a lost connection. The URL is
// already redacted.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("hub %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NotifyError describes a change notification that could not be sent.
type NotifyError struct {
	Kind domain.ChangeKind
	Err  error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Kind, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

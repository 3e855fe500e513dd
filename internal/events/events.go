package events

import (
	"context"
	"fmt"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// Handler reacts to a change signal. Returning an error does not stop the
// remaining handlers.
type Handler func(ctx context.Context, kind domain.ChangeKind) error

// HandlerDispatchError reports a handler that failed or panicked.
type HandlerDispatchError struct {
	Kind  domain.ChangeKind
	Index int
	Err   error
}

func (e *HandlerDispatchError) Error() string {
	return fmt.Sprintf("%s handler %d: %v", e.Kind, e.Index, e.Err)
}

func (e *HandlerDispatchError) Unwrap() error {
	return e.Err
}

// Publisher raises change signals to subscribers.
type Publisher interface {
	Publish(ctx context.Context, kind domain.ChangeKind) error
}

// Subscriber registers handlers for change signals.
type Subscriber interface {
	Subscribe(kind domain.ChangeKind, h Handler) (*Subscription, error)
}

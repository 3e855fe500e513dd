package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// ErrUnknownKind is returned when subscribing to an invalid change kind.
var ErrUnknownKind = errors.New("unknown change kind")

type entry struct {
	id      uint64
	handler Handler
}

// Bus keeps an ordered handler list per change kind.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.ChangeKind][]entry
	nextID   uint64
	logger   *slog.Logger
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// NewBus creates an empty bus. If logger is nil, the default logger is used.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[domain.ChangeKind][]entry),
		logger:   logger.With("component", "event_bus"),
	}
}

// Subscribe appends h to the handlers of kind. Handlers run in the order
// they were subscribed.
func (b *Bus) Subscribe(kind domain.ChangeKind, h Handler) (*Subscription, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if h == nil {
		return nil, errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], entry{id: id, handler: h})
	b.logger.Debug("registered handler", "kind", kind, "handler_count", len(b.handlers[kind]))

	return &Subscription{bus: b, kind: kind, id: id}, nil
}

// Publish calls every handler of kind in order. A handler that returns an
// error or panics is logged as a HandlerDispatchError and the next handler
// still runs. The first failure is returned.
func (b *Bus) Publish(ctx context.Context, kind domain.ChangeKind) error {
	b.mu.RLock()
	handlers := make([]entry, len(b.handlers[kind]))
	copy(handlers, b.handlers[kind])
	b.mu.RUnlock()

	b.logger.Debug("publishing change", "kind", kind, "handler_count", len(handlers))

	var firstErr error
	for i, e := range handlers {
		if err := invoke(ctx, e.handler, kind); err != nil {
			dispatchErr := &HandlerDispatchError{Kind: kind, Index: i, Err: err}
			b.logger.Error("handler failed to process change",
				"error", dispatchErr,
				"kind", kind,
				"handler_index", i)
			if firstErr == nil {
				firstErr = dispatchErr
			}
		}
	}
	return firstErr
}

// Count returns the number of handlers subscribed to kind.
func (b *Bus) Count(kind domain.ChangeKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func invoke(ctx context.Context, h Handler, kind domain.ChangeKind) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, kind)
}

func (b *Bus) remove(kind domain.ChangeKind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[kind]
	for i, e := range list {
		if e.id == id {
			b.handlers[kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Subscription detaches its handler when disposed.
type Subscription struct {
	bus  *Bus
	kind domain.ChangeKind
	id   uint64
	once sync.Once
}

// Kind returns the change kind the subscription listens to.
func (s *Subscription) Kind() domain.ChangeKind {
	return s.kind
}

// Unsubscribe removes the handler. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.bus.remove(s.kind, s.id) })
}

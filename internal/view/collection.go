package view

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/events"
)

// Loader fetches a full snapshot.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Collection is a snapshot kept current by change signals. Handlers run
// on the dispatcher that delivers the signals; Items may be read from any
// goroutine.
type Collection[T any] struct {
	name   string
	kind   domain.ChangeKind
	load   Loader[T]
	logger *slog.Logger

	mu       sync.RWMutex
	items    []T
	sub      *events.Subscription
	replaced []func([]T)
}

// NewCollection loads the initial snapshot and subscribes to kind.
func NewCollection[T any](
	ctx context.Context,
	name string,
	kind domain.ChangeKind,
	subscriber events.Subscriber,
	load Loader[T],
	logger *slog.Logger,
) (*Collection[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collection[T]{
		name:   name,
		kind:   kind,
		load:   load,
		logger: logger.With("component", "view", "view", name),
	}

	items, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	c.items = items

	sub, err := subscriber.Subscribe(kind, c.onChange)
	if err != nil {
		return nil, fmt.Errorf("subscribing %s: %w", name, err)
	}
	c.sub = sub
	return c, nil
}

func (c *Collection[T]) onChange(ctx context.Context, _ domain.ChangeKind) error {
	if err := c.Reload(ctx); err != nil {
		c.logger.Warn("reload failed, keeping previous items", "error", err)
		return err
	}
	return nil
}

// Reload fetches a fresh snapshot and replaces the items wholesale. On
// error the current items are kept.
func (c *Collection[T]) Reload(ctx context.Context) error {
	items, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.items = items
	observers := slices.Clone(c.replaced)
	c.mu.Unlock()

	c.logger.Debug("collection replaced", "count", len(items))
	for _, fn := range observers {
		fn(slices.Clone(items))
	}
	return nil
}

// Items returns a copy of the current snapshot.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// OnReplaced registers fn to receive each new snapshot after a reload.
func (c *Collection[T]) OnReplaced(fn func([]T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, fn)
}

// Close releases the subscription. Items stay readable.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Unsubscribe()
}

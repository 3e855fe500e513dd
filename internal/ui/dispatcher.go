package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Dispatcher runs functions on the UI goroutine.
type Dispatcher interface {
	// Post schedules fn and returns without waiting for it.
	Post(fn func())
}

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("ui loop stopped")

// Loop is a Dispatcher backed by a single goroutine that runs posted
// functions in FIFO order. Post never blocks; the queue is unbounded.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
	logger  *slog.Logger
}

var _ Dispatcher = (*Loop)(nil)

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		done:   make(chan struct{}),
		logger: logger.With("component", "ui_loop"),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post implements Dispatcher. Functions posted after the loop stopped are
// dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		l.logger.Debug("dropping work posted after stop")
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Do posts fn and waits until it has run, ctx is done or the loop stops.
// Calling Do from the loop goroutine deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Run executes posted functions until ctx is done. Work still queued at
// that point is discarded. A panicking function is logged and the loop
// continues.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.stopped = true
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped {
			l.queue = nil
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(fn)
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("posted function panicked", "panic", p)
		}
	}()
	fn()
}

// Queue is a Dispatcher that only runs work when Drain is called, on the
// caller's goroutine. Tests use it to control exactly when UI work happens.
type Queue struct {
	mu    sync.Mutex
	queue []func()
}

var _ Dispatcher = (*Queue)(nil)

// NewQueue creates an empty manual dispatcher.
func NewQueue() *Queue {
	return &Queue{}
}

// Post implements Dispatcher.
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.queue = append(q.queue, fn)
	q.mu.Unlock()
}

// Len returns the number of pending functions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Drain runs pending functions in order, including any they post, and
// returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return n
		}
		fn := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		fn()
		n++
	}
}

// Immediate is a Dispatcher that runs work synchronously on the posting
// goroutine.
type Immediate struct{}

// Post implements Dispatcher.
func (Immediate) Post(fn func()) {
	if fn != nil {
		fn()
	}
}

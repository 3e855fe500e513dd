package hub

import (
	"errors"
	"fmt"
	"sync"
)

// Errors returned when a message cannot be queued for a peer.
var (
	ErrOutboxClosed = errors.New("peer outbox is closed")
	ErrOutboxFull   = errors.New("peer outbox is full")
)

// outbox is a bounded per-peer message queue drained by the peer's writer.
type outbox struct {
	messages chan []byte

	mu     sync.Mutex
	closed bool
}

func newOutbox(size int) *outbox {
	return &outbox{messages: make(chan []byte, size)}
}

// enqueue adds msg without blocking.
func (o *outbox) enqueue(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.messages <- msg:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrOutboxFull, cap(o.messages))
	}
}

// close stops further enqueues. Queued messages are still delivered
// before the writer sees the channel close. It reports whether this call
// closed the outbox.
func (o *outbox) close() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.closed = true
	close(o.messages)
	return true
}

func (o *outbox) len() int {
	return len(o.messages)
}

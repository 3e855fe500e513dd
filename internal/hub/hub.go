package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc/iter"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// ErrHubClosed is returned by Shutdown when called twice.
var ErrHubClosed = errors.New("hub is closed")

// Options tunes the hub. Zero fields take the value from DefaultOptions.
type Options struct {
	OutboxSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	// AllowedOrigins restricts browser origins; empty or "*" allows all.
	// Requests without an Origin header are always accepted.
	AllowedOrigins []string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		OutboxSize:     16,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.OutboxSize <= 0 {
		o.OutboxSize = d.OutboxSize
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = 2 * o.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	return o
}

// Hub tracks connected peers and relays change signals between them.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.RWMutex
	peers  map[string]*peer
	closed bool

	// handlers counts running connection handlers for Shutdown.
	handlers sync.WaitGroup
}

// New creates a hub. If logger is nil, the default logger is used.
func New(opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	h := &Hub{
		opts:   opts,
		logger: logger.With("component", "hub"),
		peers:  make(map[string]*peer),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.ContainsFunc(h.opts.AllowedOrigins, func(o string) bool {
		return strings.EqualFold(o, origin)
	})
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	if !closed {
		h.handlers.Add(1)
	}
	h.mu.RUnlock()
	if closed {
		http.Error(w, "hub is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.handlers.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Warn("websocket upgrade failed",
			"error", err,
			"remote_addr", r.RemoteAddr)
		return
	}

	p := newPeer(h, uuid.NewString(), conn)
	// The welcome is queued while the peer is unregistered, so it is the
	// first frame ahead of any broadcast.
	if err := p.send(Message{Type: TypeWelcome, ConnectionID: p.id}); err != nil {
		p.logger.Warn("could not queue welcome", "error", err)
		_ = conn.Close()
		return
	}
	if !h.register(p) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub is shutting down"),
			time.Now().Add(h.opts.WriteTimeout))
		_ = conn.Close()
		return
	}
	go p.writePump()

	p.readPump()

	h.unregister(p)
	p.close(websocket.CloseNormalClosure, "")
	<-p.writerDone
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p.id] = p
	h.logger.Info("peer connected",
		"connection_id", p.id,
		"peer_count", len(h.peers))
	return true
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p.id]; !ok {
		return
	}
	delete(h.peers, p.id)
	h.logger.Info("peer disconnected",
		"connection_id", p.id,
		"peer_count", len(h.peers))
}

// Broadcast queues the event for kind on every peer except the one with
// connection ID except, and returns how many peers accepted it. Peers with
// a full or closed outbox miss the event.
func (h *Hub) Broadcast(kind domain.ChangeKind, except string) int {
	data, err := Encode(Event(kind))
	if err != nil {
		h.logger.Error("failed to encode event", "error", err, "kind", kind)
		return 0
	}

	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != except {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	var delivered atomic.Int64
	iter.ForEach(targets, func(pp **peer) {
		p := *pp
		if err := p.out.enqueue(data); err != nil {
			p.logger.Warn("peer missed change signal",
				"kind", kind,
				"error", err,
				"queued", p.out.len())
			return
		}
		delivered.Add(1)
	})

	return int(delivered.Load())
}

// Count returns the number of connected peers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Shutdown sends a going-away close frame to every peer and waits for
// their handlers to finish or for ctx to end, whichever comes first.
// New connections are refused from the moment Shutdown is called.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	h.logger.Info("shutting down hub", "peer_count", len(peers))
	for _, p := range peers {
		p.close(websocket.CloseGoingAway, "hub is shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, p := range peers {
			_ = p.conn.Close()
		}
		return ctx.Err()
	}
}

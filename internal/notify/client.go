package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/events"
	"github.com/phrazzld/taskmanager/internal/hub"
	"github.com/phrazzld/taskmanager/internal/redact"
)

var errStopped = errors.New("client stopped")

// Client is the process-wide hub connection.
type Client struct {
	opts   Options
	url    string
	bus    *events.Bus
	logger *slog.Logger

	// handlers has exactly one entry per change kind, bound in New.
	handlers map[domain.ChangeKind]func()

	life       context.Context
	lifeCancel context.CancelFunc

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	connID         string
	ready          chan struct{}
	readyClosed    bool
	cancel         context.CancelFunc
	done           chan struct{}
	closed         bool
	stateHooks     []func(State)
	reconnectHooks []func()

	// writeMu serializes data frames; gorilla allows one writer at a time.
	writeMu sync.Mutex
}

// New validates opts and creates a disconnected client.
func New(opts Options) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid notify options: %w", err)
	}
	opts = opts.withDefaults()

	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(opts.Logger)
	}

	life, lifeCancel := context.WithCancel(context.Background())
	c := &Client{
		opts:       opts,
		url:        redact.URL(opts.URL),
		bus:        bus,
		logger:     opts.Logger.With("component", "notify_client"),
		life:       life,
		lifeCancel: lifeCancel,
		ready:      make(chan struct{}),
	}
	c.handlers = map[domain.ChangeKind]func(){
		domain.TaskChanged: func() { c.raise(domain.TaskChanged) },
		domain.UserChanged: func() { c.raise(domain.UserChanged) },
	}
	return c, nil
}

// raise delivers kind to subscribers on the dispatcher.
func (c *Client) raise(kind domain.ChangeKind) {
	c.opts.Dispatcher.Post(func() {
		// The bus logs each failing handler; this records the delivery.
		if err := c.bus.Publish(c.life, kind); err != nil {
			c.logger.Warn("change delivery incomplete", "kind", kind, "error", err)
		}
	})
}

// Start connects to the hub. It returns nil without dialing when the
// client is already connected or connecting. A failed dial is logged and
// left to the background reconnect policy; Start still returns nil.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state.started() {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("start ignored, client already started", "state", state.String())
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(c.life)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	notify := c.setStateLocked(Connecting)
	c.mu.Unlock()
	notify()

	// Stop cancels runCtx, which must also abort this dial.
	dialCtx, cancelDial := context.WithCancel(ctx)
	stopDial := context.AfterFunc(runCtx, cancelDial)
	conn, id, err := c.dial(dialCtx)
	stopDial()
	cancelDial()

	if err != nil {
		if runCtx.Err() == nil {
			c.logger.Warn("hub connection failed, retrying in background",
				"error", &ConnectionError{Op: "dial", URL: c.url, Err: err})
		}
		c.setStateIfRunning(runCtx, Reconnecting)
	} else if !c.attach(runCtx, conn, id) {
		_ = conn.Close()
		conn = nil
	}

	go c.supervise(runCtx, conn, done)
	return nil
}

// Stop closes the connection with a normal close frame, stops reconnecting
// and waits for background work to end or ctx to expire. Stopping a
// stopped client is a no-op. Start may be called again afterwards.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done, c.conn, c.connID = nil, nil, nil, ""
	if cancel != nil {
		cancel()
	}
	c.rearmLocked()
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()
	notify()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.logger.Debug("failed to send close frame", "error", err)
		}
		_ = conn.Close()
	}

	if done == nil {
		return nil
	}
	select {
	case <-done:
		c.logger.Info("disconnected from hub")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the client for good. Start returns ErrClientClosed afterwards.
func (c *Client) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.lifeCancel()
	return err
}

// NotifyTaskChanged tells other clients that tasks changed. It does nothing
// while disconnected and never reports failure.
func (c *Client) NotifyTaskChanged(ctx context.Context) {
	c.notify(ctx, domain.TaskChanged)
}

// NotifyUserChanged tells other clients that users changed. It does nothing
// while disconnected and never reports failure.
func (c *Client) NotifyUserChanged(ctx context.Context) {
	c.notify(ctx, domain.UserChanged)
}

func (c *Client) notify(ctx context.Context, kind domain.ChangeKind) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != Connected || conn == nil {
		c.logger.Debug("skipping change notification", "kind", kind, "state", state.String())
		return
	}

	msg, err := hub.Invocation(kind)
	if err == nil {
		var data []byte
		if data, err = hub.Encode(msg); err == nil {
			err = c.write(ctx, conn, data)
		}
	}
	if err != nil {
		c.logger.Warn("change notification failed", "error", &NotifyError{Kind: kind, Err: err})
		return
	}
	c.logger.Debug("change notification sent", "kind", kind)
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, data)
}

// dial connects and waits for the hub's welcome, bounded by ctx and
// DialTimeout. Canceling ctx aborts a handshake or welcome read in flight.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	// gorilla applies only the ctx deadline to the socket, so cancellation
	// expires the raw connection instead.
	var (
		rawMu sync.Mutex
		raw   net.Conn
	)
	dialer := *c.opts.Dialer
	netDial := dialer.NetDialContext
	if netDial == nil && dialer.NetDial != nil {
		plain := dialer.NetDial
		netDial = func(_ context.Context, network, addr string) (net.Conn, error) {
			return plain(network, addr)
		}
	}
	if netDial == nil {
		netDial = (&net.Dialer{}).DialContext
	}
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		nc, err := netDial(ctx, network, addr)
		if err == nil {
			rawMu.Lock()
			raw = nc
			rawMu.Unlock()
		}
		return nc, err
	}
	stopAbort := context.AfterFunc(ctx, func() {
		rawMu.Lock()
		defer rawMu.Unlock()
		if raw != nil {
			_ = raw.SetDeadline(time.Now())
		}
	})
	defer stopAbort()

	header := c.opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if c.opts.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.AccessToken)
	}

	conn, resp, err := dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, "", fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("waiting for welcome: %w", err)
	}

	msg, err := hub.Decode(data)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	if msg.Type != hub.TypeWelcome {
		_ = conn.Close()
		return nil, "", fmt.Errorf("expected welcome, got %q", msg.Type)
	}
	if stopAbort() {
		c.keepAlive(conn)
		return conn, msg.ConnectionID, nil
	}
	_ = conn.Close()
	return nil, "", context.Cause(ctx)
}

// keepAlive arms the server timeout on conn. Hub pings and messages push
// the read deadline out; a silent hub fails the next read.
func (c *Client) keepAlive(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.ServerTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.ServerTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.opts.WriteTimeout))
		var netErr net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil
		}
		return err
	})
}

// supervise reads from conn and reconnects after failures until ctx ends
// or the reconnect policy gives up.
func (c *Client) supervise(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		if conn != nil {
			err := c.readLoop(conn)
			c.detach(conn)
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("hub connection lost, reconnecting",
				"error", &ConnectionError{Op: "read", URL: c.url, Err: err})
			c.setStateIfRunning(ctx, Reconnecting)
		}
		if ctx.Err() != nil {
			return
		}

		conn = c.reconnect(ctx)
		if conn == nil {
			c.giveUp(ctx)
			return
		}
		c.afterReconnect()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.ServerTimeout))

		msg, err := hub.Decode(data)
		if err != nil {
			c.logger.Warn("ignoring malformed hub message", "error", err)
			continue
		}

		switch msg.Type {
		case hub.TypeEvent:
			kind, ok := hub.EventKind(msg.Target)
			if !ok {
				c.logger.Warn("ignoring unknown event", "target", msg.Target)
				continue
			}
			c.handlers[kind]()
		case hub.TypeError:
			c.logger.Warn("hub rejected a message", "error", msg.Error)
		default:
			c.logger.Debug("ignoring hub message", "type", string(msg.Type))
		}
	}
}

func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	b := retry.NewExponential(c.opts.ReconnectBase)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(c.opts.ReconnectMax, b)
	if n := c.opts.MaxReconnectAttempts; n > 0 {
		b = retry.WithMaxRetries(n-1, b)
	}

	var conn *websocket.Conn
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		cn, id, err := c.dial(ctx)
		if err != nil {
			c.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if !c.attach(ctx, cn, id) {
			_ = cn.Close()
			return errStopped
		}
		conn = cn
		return nil
	})
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, errStopped) {
			c.logger.Error("giving up on hub connection",
				"attempts", attempt,
				"error", &ConnectionError{Op: "reconnect", URL: c.url, Err: err})
		}
		return nil
	}
	return conn
}

func (c *Client) afterReconnect() {
	if c.opts.ResyncOnReconnect {
		for _, kind := range domain.ChangeKinds {
			c.handlers[kind]()
		}
	}

	c.mu.Lock()
	hooks := slices.Clone(c.reconnectHooks)
	c.mu.Unlock()
	for _, h := range hooks {
		c.opts.Dispatcher.Post(h)
	}
}

// attach installs conn as the live connection unless ctx has ended.
func (c *Client) attach(ctx context.Context, conn *websocket.Conn, id string) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.conn, c.connID = conn, id
	if !c.readyClosed {
		close(c.ready)
		c.readyClosed = true
	}
	notify := c.setStateLocked(Connected)
	c.mu.Unlock()
	notify()

	c.logger.Info("connected to hub", "url", c.url, "connection_id", id)
	return true
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn, c.connID = nil, ""
		c.rearmLocked()
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) giveUp(ctx context.Context) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.cancel, c.done = nil, nil
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()
	notify()
}

func (c *Client) setStateIfRunning(ctx context.Context, s State) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	notify := c.setStateLocked(s)
	c.mu.Unlock()
	notify()
}

// setStateLocked changes the state and returns a function that runs the
// state hooks; call it after releasing mu.
func (c *Client) setStateLocked(s State) func() {
	if c.state == s {
		return func() {}
	}
	prev := c.state
	c.state = s
	hooks := slices.Clone(c.stateHooks)
	return func() {
		c.logger.Debug("connection state changed", "from", prev.String(), "to", s.String())
		for _, h := range hooks {
			h(s)
		}
	}
}

func (c *Client) rearmLocked() {
	if c.readyClosed {
		c.ready = make(chan struct{})
		c.readyClosed = false
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready returns a channel that is closed while the client is connected.
// After a disconnect a new channel is handed out.
func (c *Client) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// WaitReady blocks until the client is connected or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionID returns the ID the hub assigned to the live connection, or
// "" while disconnected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// OnStateChange registers fn to run after every state transition, on the
// goroutine that caused it.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHooks = append(c.stateHooks, fn)
}

// OnReconnected registers fn to run on the dispatcher after each
// connection re-established by the reconnect policy.
func (c *Client) OnReconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, fn)
}

// Subscribe registers h for kind. Handlers run on the dispatcher.
func (c *Client) Subscribe(kind domain.ChangeKind, h events.Handler) (*events.Subscription, error) {
	return c.bus.Subscribe(kind, h)
}

// OnTasksChanged subscribes h to task changes.
func (c *Client) OnTasksChanged(h events.Handler) (*events.Subscription, error) {
	return c.Subscribe(domain.TaskChanged, h)
}

// OnUsersChanged subscribes h to user changes.
func (c *Client) OnUsersChanged(h events.Handler) (*events.Subscription, error) {
	return c.Subscribe(domain.UserChanged, h)
}

// Bus returns the subscription registry.
func (c *Client) Bus() *events.Bus {
	return c.bus
}

package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// peer is one connected client. The read pump runs on the HTTP handler
// goroutine; the write pump owns every write to conn.
type peer struct {
	id     string
	conn   *websocket.Conn
	out    *outbox
	hub    *Hub
	logger *slog.Logger

	closeOnce sync.Once
	closeCode int
	closeText string

	writerDone chan struct{}
}

func newPeer(h *Hub, id string, conn *websocket.Conn) *peer {
	return &peer{
		id:         id,
		conn:       conn,
		out:        newOutbox(h.opts.OutboxSize),
		hub:        h,
		logger:     h.logger.With("connection_id", id),
		closeCode:  websocket.CloseNormalClosure,
		writerDone: make(chan struct{}),
	}
}

// send queues a message for this peer.
func (p *peer) send(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return p.out.enqueue(data)
}

// close asks the writer to send a close frame with code and stop.
func (p *peer) close(code int, text string) {
	p.closeOnce.Do(func() {
		p.closeCode = code
		p.closeText = text
		p.out.close()
	})
}

// readPump handles invocations until the connection fails or closes.
func (p *peer) readPump() {
	opts := p.hub.opts
	p.conn.SetReadLimit(opts.MaxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Warn("peer connection lost", "error", err)
			} else {
				p.logger.Debug("peer disconnected", "error", err)
			}
			return
		}
		p.handle(data)
	}
}

func (p *peer) handle(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		p.logger.Warn("malformed message from peer", "error", err)
		p.reply(err.Error())
		return
	}
	if msg.Type != TypeInvocation {
		p.reply("unexpected message type " + string(msg.Type))
		return
	}

	kind, ok := InvocationKind(msg.Target)
	if !ok {
		p.logger.Warn("unknown invocation target", "target", msg.Target)
		p.reply("unknown target " + msg.Target)
		return
	}

	delivered := p.hub.Broadcast(kind, p.id)
	p.logger.Debug("relayed change", "kind", kind, "delivered", delivered)
}

func (p *peer) reply(text string) {
	if err := p.send(Message{Type: TypeError, Error: text}); err != nil {
		p.logger.Debug("could not queue error reply", "error", err)
	}
}

// writePump drains the outbox and keeps the connection alive with pings.
func (p *peer) writePump() {
	opts := p.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
		close(p.writerDone)
	}()

	for {
		select {
		case data, ok := <-p.out.messages:
			_ = p.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				msg := websocket.FormatCloseMessage(p.closeCode, p.closeText)
				if err := p.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					p.logger.Debug("failed to write close frame", "error", err)
				}
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Warn("failed to write to peer", "error", err)
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
				p.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/domain"
)

type testPeer struct {
	conn *websocket.Conn
	id   string
}

func newTestHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + Path
}

func connect(t *testing.T, srv *httptest.Server) *testPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	welcome := read(t, conn)
	require.Equal(t, TypeWelcome, welcome.Type)
	require.NotEmpty(t, welcome.ConnectionID)
	return &testPeer{conn: conn, id: welcome.ConnectionID}
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := Decode(data)
	require.NoError(t, err)
	return msg
}

func invoke(t *testing.T, conn *websocket.Conn, kind domain.ChangeKind) {
	t.Helper()
	msg, err := Invocation(kind)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHub_WelcomeAndCount(t *testing.T) {
	h, srv := newTestHub(t, Options{})

	a := connect(t, srv)
	b := connect(t, srv)

	assert.NotEqual(t, a.id, b.id)
	assert.Equal(t, 2, h.Count())
}

func TestHub_BroadcastExcludesCaller(t *testing.T) {
	_, srv := newTestHub(t, Options{})
	a := connect(t, srv)
	b := connect(t, srv)
	c := connect(t, srv)

	invoke(t, a.conn, domain.TaskChanged)

	assert.Equal(t, Event(domain.TaskChanged), read(t, b.conn))
	assert.Equal(t, Event(domain.TaskChanged), read(t, c.conn))

	// Per-peer delivery is FIFO, so if A had received its own TaskChanged
	// it would arrive before this UserChanged from B.
	invoke(t, b.conn, domain.UserChanged)
	assert.Equal(t, Event(domain.UserChanged), read(t, a.conn))
	assert.Equal(t, Event(domain.UserChanged), read(t, c.conn))
}

func TestHub_BroadcastReturnsDeliveredCount(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	a := connect(t, srv)
	connect(t, srv)
	connect(t, srv)

	assert.Equal(t, 2, h.Broadcast(domain.UserChanged, a.id))
	assert.Equal(t, 3, h.Broadcast(domain.UserChanged, ""))
}

func TestHub_WelcomePrecedesBroadcasts(t *testing.T) {
	h, srv := newTestHub(t, Options{})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast(domain.TaskChanged, "")
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	// connect fails unless the first frame is the welcome.
	for range 20 {
		p := connect(t, srv)
		_ = p.conn.Close()
	}
}

func TestHub_InvalidMessagesGetErrorReply(t *testing.T) {
	_, srv := newTestHub(t, Options{})
	a := connect(t, srv)
	b := connect(t, srv)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"unknown target", `{"type":"invocation","target":"DropTables"}`, "unknown target DropTables"},
		{"wrong type", `{"type":"event","target":"TaskChanged"}`, "unexpected message type event"},
		{"malformed", `{not json`, "decoding message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			reply := read(t, a.conn)
			assert.Equal(t, TypeError, reply.Type)
			assert.Contains(t, reply.Error, tt.want)
		})
	}

	// The connection survives and B received nothing from the bad frames.
	invoke(t, a.conn, domain.TaskChanged)
	assert.Equal(t, Event(domain.TaskChanged), read(t, b.conn))
}

func TestHub_PeerRemovedOnDisconnect(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	a := connect(t, srv)
	connect(t, srv)
	require.Equal(t, 2, h.Count())

	require.NoError(t, a.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return h.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_Shutdown(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	a := connect(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Shutdown(ctx) }()

	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := a.conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	require.NoError(t, <-done)
	assert.Equal(t, 0, h.Count())
	assert.ErrorIs(t, h.Shutdown(ctx), ErrHubClosed)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_PingKeepsConnectionAlive(t *testing.T) {
	h, srv := newTestHub(t, Options{PingInterval: 20 * time.Millisecond, PongWait: 100 * time.Millisecond})
	a := connect(t, srv)

	pings := make(chan struct{}, 16)
	a.conn.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return a.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := a.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(5 * time.Second):
		t.Fatal("no ping received")
	}
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, h.Count(), "a peer answering pings stays connected")
}

func TestHub_SilentPeerIsDropped(t *testing.T) {
	h, srv := newTestHub(t, Options{PingInterval: 20 * time.Millisecond, PongWait: 60 * time.Millisecond})
	connect(t, srv)

	// Nothing reads on the client side, so pings are never answered.
	assert.Eventually(t, func() bool { return h.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_CheckOrigin(t *testing.T) {
	h := New(Options{AllowedOrigins: []string{"http://app.example"}}, nil)

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, Path, nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, h.checkOrigin(req("")))
	assert.True(t, h.checkOrigin(req("http://APP.example")))
	assert.False(t, h.checkOrigin(req("http://evil.example")))

	open := New(Options{AllowedOrigins: []string{"*"}}, nil)
	assert.True(t, open.checkOrigin(req("http://evil.example")))
}

func TestOutbox(t *testing.T) {
	o := newOutbox(1)

	require.NoError(t, o.enqueue([]byte("a")))
	assert.ErrorIs(t, o.enqueue([]byte("b")), ErrOutboxFull)
	assert.Equal(t, 1, o.len())

	assert.True(t, o.close())
	assert.False(t, o.close())
	assert.ErrorIs(t, o.enqueue([]byte("c")), ErrOutboxClosed)

	// Queued messages survive close.
	msg, ok := <-o.messages
	assert.True(t, ok)
	assert.Equal(t, "a", string(msg))
	_, ok = <-o.messages
	assert.False(t, ok)
}

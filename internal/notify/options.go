package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phrazzld/taskmanager/internal/events"
	"github.com/phrazzld/taskmanager/internal/ui"
)

// Options configures a Client.
type Options struct {
	// URL of the hub endpoint, e.g. ws://localhost:5000/taskhub. Required.
	URL string
	// Dispatcher runs subscriber callbacks. Required.
	Dispatcher ui.Dispatcher
	// Logger is required.
	Logger *slog.Logger

	// Bus holds subscriptions; a new one is created when nil.
	Bus *events.Bus
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// AccessToken, when set, is sent as a Bearer token.
	AccessToken string
	// Header adds request headers to the handshake.
	Header http.Header

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// ServerTimeout drops the connection when nothing, pings included,
	// arrives from the hub for this long. Keep it above the hub's ping
	// interval.
	ServerTimeout time.Duration

	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	// MaxReconnectAttempts bounds reconnect dials after a failure; 0 retries
	// until Stop.
	MaxReconnectAttempts uint64
	// ResyncOnReconnect raises every change kind after a reconnect so
	// subscribers reload what they may have missed.
	ResyncOnReconnect bool
}

func (o Options) validate() error {
	var errs []error
	if o.URL == "" {
		errs = append(errs, errors.New("hub URL is required"))
	}
	if o.Dispatcher == nil {
		errs = append(errs, errors.New("dispatcher is required"))
	}
	if o.Logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ServerTimeout <= 0 {
		o.ServerTimeout = 60 * time.Second
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax < o.ReconnectBase {
		o.ReconnectMax = 30 * o.ReconnectBase
	}
	return o
}

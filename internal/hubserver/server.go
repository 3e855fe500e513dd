package hubserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/taskmanager/internal/hub"
)

// Server runs a hub behind an HTTP server.
type Server struct {
	hub             *hub.Hub
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, h *hub.Hub, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		hub: h,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("component", "hub_server"),
	}
}

// Listen binds the listen address. It returns the bound listener so
// callers can learn the port when addr ends in ":0".
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// hub and the HTTP server down within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hub listening", "addr", ln.Addr().String(), "path", hub.Path)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("hub server failed", "error", err)
			return fmt.Errorf("hub server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down hub server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// WebSocket connections are hijacked, so http.Server.Shutdown does not
	// wait for them; the hub closes them itself.
	if err := s.hub.Shutdown(shutdownCtx); err != nil && !errors.Is(err, hub.ErrHubClosed) {
		s.logger.Warn("hub shutdown incomplete", "error", err)
	}
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("hub server shutdown failed", "error", err)
		return fmt.Errorf("hub server shutdown failed: %w", err)
	}

	s.logger.Info("hub server shutdown completed")
	return nil
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

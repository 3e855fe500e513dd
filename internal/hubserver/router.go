package hubserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apiMiddleware "github.com/phrazzld/taskmanager/internal/api/middleware"
	"github.com/phrazzld/taskmanager/internal/api/shared"
	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/hub"
	"github.com/phrazzld/taskmanager/internal/service/auth"
)

// HealthPath reports liveness and the number of connected peers.
const HealthPath = "/health"

// HealthResponse is the body served on HealthPath.
type HealthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

// NewRouter creates the hub router. When jwtService is nil the hub
// endpoint accepts anonymous connections.
func NewRouter(h *hub.Hub, jwtService auth.JWTService, allowedOrigins []string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(logger))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: originsOrAll(allowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Peers: h.Count()})
	})

	r.Group(func(r chi.Router) {
		if jwtService != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(jwtService).Authenticate)
		}
		r.Handle(hub.Path, h)
	})

	return r
}

func originsOrAll(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// HubOptions maps the hub configuration section onto hub.Options.
func HubOptions(cfg config.HubConfig) hub.Options {
	return hub.Options{
		OutboxSize:     cfg.OutboxSize,
		PingInterval:   cfg.PingInterval,
		PongWait:       cfg.PongWait,
		WriteTimeout:   cfg.WriteTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/taskmanager/internal/api/shared"
	"github.com/phrazzld/taskmanager/internal/platform/logger"
	"github.com/phrazzld/taskmanager/internal/redact"
)

// Trace adds a trace ID and a request-scoped logger to the request
// context. The chi request ID is reused when present. Apply it after
// chi's RequestID middleware and before anything that logs.
func Trace(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := chimw.GetReqID(ctx); id != "" {
				ctx = shared.WithTraceID(ctx, id)
			} else {
				ctx = shared.SetTraceID(ctx)
			}
			traceID := shared.GetTraceID(ctx)

			log := logger.FromContextOrDefault(ctx, base).With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", redact.String(r.URL.RawQuery)),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

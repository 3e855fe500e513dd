package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/taskmanager/internal/api/shared"
	"github.com/phrazzld/taskmanager/internal/service/auth"
)

// AccessTokenParam is the query parameter browsers and clients that cannot
// set headers on a WebSocket upgrade use to pass their token.
const AccessTokenParam = "access_token"

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the token from the Authorization header or the
// access_token query parameter and adds its claims to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		if token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrWrongTokenType),
				errors.Is(err, auth.ErrMissingToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err,
					shared.WithElevatedLogLevel())
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithClaims(r.Context(), claims)))
	})
}

// bearerToken extracts the token. ok is false for a malformed
// Authorization header; a missing token yields "" and true.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	return r.URL.Query().Get(AccessTokenParam), true
}

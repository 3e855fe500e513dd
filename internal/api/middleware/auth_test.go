package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/api/shared"
	"github.com/phrazzld/taskmanager/internal/mocks"
	"github.com/phrazzld/taskmanager/internal/service/auth"
)

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	claims := &auth.Claims{UserID: 42, Username: "ada"}

	tests := []struct {
		name           string
		authHeader     string
		query          string
		validateErr    error
		expectedStatus int
		expectedToken  string
	}{
		{
			name:           "valid bearer token",
			authHeader:     "Bearer valid-token",
			expectedStatus: http.StatusOK,
			expectedToken:  "valid-token",
		},
		{
			name:           "valid query token",
			query:          "?access_token=query-token",
			expectedStatus: http.StatusOK,
			expectedToken:  "query-token",
		},
		{
			name:           "header wins over query",
			authHeader:     "Bearer header-token",
			query:          "?access_token=query-token",
			expectedStatus: http.StatusOK,
			expectedToken:  "header-token",
		},
		{
			name:           "missing token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid auth format",
			authHeader:     "InvalidFormat",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer expired-token",
			validateErr:    auth.ErrExpiredToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			validateErr:    auth.ErrInvalidToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unexpected validation failure",
			authHeader:     "Bearer token",
			validateErr:    errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seenToken string
			jwtService := &mocks.MockJWTService{
				ValidateTokenFn: func(_ context.Context, token string) (*auth.Claims, error) {
					seenToken = token
					if tt.validateErr != nil {
						return nil, tt.validateErr
					}
					return claims, nil
				},
			}

			var captured *auth.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured, _ = shared.GetClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/taskhub"+tt.query, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			NewAuthMiddleware(jwtService).Authenticate(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				require.NotNil(t, captured)
				assert.Equal(t, int64(42), captured.UserID)
				assert.Equal(t, tt.expectedToken, seenToken)
			} else {
				assert.Nil(t, captured)
			}
		})
	}
}

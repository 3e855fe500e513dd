package auth

import (
	"context"
	"time"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// JWTService issues and checks the access tokens clients present to the
// notification hub.
type JWTService interface {
	// GenerateToken creates a signed access token for the session's user.
	GenerateToken(ctx context.Context, session domain.Session) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing user information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the validated content of an access token.
type Claims struct {
	UserID    int64
	Username  string
	IsAdmin   bool
	TokenType string

	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

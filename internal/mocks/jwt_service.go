package mocks

import (
	"context"

	"github.com/phrazzld/taskmanager/internal/domain"
	"github.com/phrazzld/taskmanager/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, session domain.Session) (string, error)
	ValidateTokenFn func(ctx context.Context, token string) (*auth.Claims, error)

	// Token is returned by GenerateToken when GenerateTokenFn is nil
	Token string
	// Claims and Err are returned by ValidateToken when ValidateTokenFn is nil
	Claims *auth.Claims
	Err    error
}

var _ auth.JWTService = (*MockJWTService)(nil)

// GenerateToken implements auth.JWTService
func (m *MockJWTService) GenerateToken(ctx context.Context, session domain.Session) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, session)
	}
	return m.Token, m.Err
}

// ValidateToken implements auth.JWTService
func (m *MockJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Claims, nil
}

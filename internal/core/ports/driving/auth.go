package driving

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// AuthService handles console authentication
type AuthService interface {
	// Login verifies the admin secret and opens a session
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// Logout ends the session identified by token
	Logout(ctx context.Context, token string) error

	// ValidateToken checks the token and that its session is still live
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultSessionTTL is how long a console login stays valid
const DefaultSessionTTL = 7 * 24 * time.Hour

// authService implements the AuthService interface
type authService struct {
	sessionStore driven.SessionStore
	authAdapter  driven.AuthAdapter
	secretHash   string
	tokenTTL     time.Duration
}

// NewAuthService creates a new AuthService for a single shared admin secret.
// The secret is hashed once at construction and never kept in plain text.
func NewAuthService(
	sessionStore driven.SessionStore,
	authAdapter driven.AuthAdapter,
	adminSecret string,
	tokenTTL time.Duration,
) (driving.AuthService, error) {
	if adminSecret == "" {
		return nil, fmt.Errorf("%w: admin secret is empty", domain.ErrValidation)
	}
	hash, err := authAdapter.HashSecret(adminSecret)
	if err != nil {
		return nil, fmt.Errorf("hash admin secret: %w", err)
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultSessionTTL
	}
	return &authService{
		sessionStore: sessionStore,
		authAdapter:  authAdapter,
		secretHash:   hash,
		tokenTTL:     tokenTTL,
	}, nil
}

// Login verifies the admin secret and creates a session
func (s *authService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if req.Secret == "" || !s.authAdapter.VerifySecret(req.Secret, s.secretHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	sessionID := generateID()

	token, err := s.authAdapter.GenerateToken(&domain.TokenClaims{
		SessionID: sessionID,
		Role:      domain.RoleAdmin,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:        sessionID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	}
	if err := s.sessionStore.Save(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	session, err := s.sessionStore.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{
		SessionID: claims.SessionID,
		Role:      claims.Role,
	}, nil
}

// Logout invalidates a session
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil // Already invalid, nothing to do
	}

	return s.sessionStore.Delete(ctx, claims.SessionID)
}

func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

package domain

import "time"

// Session represents an authenticated admin console session
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthContext contains the authenticated session for request context
type AuthContext struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// RoleAdmin is the only console role
const RoleAdmin = "admin"

// LoginRequest represents a console login attempt
type LoginRequest struct {
	Secret    string `json:"secret"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

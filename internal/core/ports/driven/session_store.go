package driven

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// SessionStore handles console session persistence (Redis or in-memory)
type SessionStore interface {
	// Save stores a session with TTL based on ExpiresAt
	Save(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete deletes a session
	Delete(ctx context.Context, id string) error
}

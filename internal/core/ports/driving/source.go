package driving

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// SourceService manages the source registry (admin operations)
type SourceService interface {
	// Create validates and registers a new source. Slug collisions, unknown
	// methods and missing config keys fail with a domain.ValidationError.
	Create(ctx context.Context, req domain.SourceInput) (*domain.Source, error)

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.Source, error)

	// List retrieves all sources, newest first
	List(ctx context.Context) ([]*domain.Source, error)

	// Update applies a partial update, re-validating slug and config
	Update(ctx context.Context, id string, req domain.SourceUpdate) (*domain.Source, error)

	// Delete removes a source. Collected postmortems are kept.
	Delete(ctx context.Context, id string) error
}

package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// SourceStore handles source persistence (PostgreSQL)
type SourceStore interface {
	// Save creates or updates a source
	Save(ctx context.Context, source *domain.Source) error

	// Get retrieves a source by ID
	Get(ctx context.Context, id string) (*domain.Source, error)

	// GetBySlug retrieves a source by slug
	GetBySlug(ctx context.Context, slug string) (*domain.Source, error)

	// List retrieves all sources, newest first
	List(ctx context.Context) ([]*domain.Source, error)

	// Delete deletes a source. Postmortems collected from it are kept.
	Delete(ctx context.Context, id string) error

	// MarkSynced records a successful sync completion
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

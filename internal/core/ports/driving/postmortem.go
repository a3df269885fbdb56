package driving

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// PostmortemService serves the public catalogue
type PostmortemService interface {
	// List returns one page of entries matching the filter
	List(ctx context.Context, filter domain.PostmortemFilter) (*domain.PostmortemPage, error)

	// Get retrieves a published entry by ID
	Get(ctx context.Context, id string) (*domain.Postmortem, error)

	// Companies lists companies having published entries
	Companies(ctx context.Context) ([]string, error)
}

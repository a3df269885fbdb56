package driven

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// PostmortemStore handles postmortem persistence (PostgreSQL)
type PostmortemStore interface {
	// Insert stores a new entry. Returns domain.ErrValidation with Conflict set
	// if the id already exists.
	Insert(ctx context.Context, p *domain.Postmortem) error

	// Exists reports whether an entry with the id is stored
	Exists(ctx context.Context, id string) (bool, error)

	// Get retrieves an entry by ID
	Get(ctx context.Context, id string) (*domain.Postmortem, error)

	// SetStatus moves an entry from one moderation status to another. It
	// reports false, with no error, when the entry is missing or no longer
	// has status from.
	SetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error)

	// Delete removes an entry
	Delete(ctx context.Context, id string) error

	// ListByStatus retrieves all entries with the status, newest first
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Postmortem, error)

	// Search retrieves one page of entries matching the filter and the total match count
	Search(ctx context.Context, filter domain.PostmortemFilter) ([]*domain.Postmortem, int, error)

	// Companies lists distinct company names having entries with the status
	Companies(ctx context.Context, status domain.Status) ([]string, error)
}

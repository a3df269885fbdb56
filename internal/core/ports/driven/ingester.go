package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// ProgressFunc receives discovery and fetch progress while an ingester runs.
// Ingesters only emit commits_page, commits_done and fetching events.
type ProgressFunc func(domain.SyncEvent)

// Ingester collects candidate postmortems for one ingestion method.
type Ingester interface {
	// Method returns the ingestion method this ingester handles.
	Method() domain.Method

	// Collect fetches entries published after since (nil means everything).
	// Returned entries carry id, company, title and url; status and
	// timestamps are assigned by the caller.
	Collect(ctx context.Context, source *domain.Source, since *time.Time, progress ProgressFunc) ([]*domain.Postmortem, error)
}

// IngesterRegistry resolves the ingester for a method.
type IngesterRegistry interface {
	// Get returns the ingester registered for method, or an error wrapping
	// domain.ErrUnsupportedMethod.
	Get(method domain.Method) (Ingester, error)
}

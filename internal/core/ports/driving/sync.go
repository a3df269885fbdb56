package driving

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// EmitFunc delivers one progress event to the stream consumer
type EmitFunc func(domain.SyncEvent)

// SyncRunner runs one ingestion job for a source and reports progress
type SyncRunner interface {
	// Run syncs the source, emitting start, discovery, incident and exactly
	// one terminal event (done or error). Failures after the job has started
	// are reported through emit, not the return value. The returned error is
	// only set when the source cannot be loaded (domain.ErrNotFound).
	Run(ctx context.Context, sourceID string, emit EmitFunc) (*domain.SyncResult, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// ModerationService moves collected entries through review
type ModerationService interface {
	// Queue lists pending entries, newest first
	Queue(ctx context.Context) ([]*domain.Postmortem, error)

	// Publish moves a pending entry to published. Publishing twice is a no-op.
	Publish(ctx context.Context, id string) (*domain.Postmortem, error)

	// Reject moves a pending entry to rejected. Rejecting twice is a no-op.
	Reject(ctx context.Context, id string) (*domain.Postmortem, error)

	// Delete removes an entry whatever its status
	Delete(ctx context.Context, id string) error

	// BulkPublish publishes each id independently and tallies the outcome
	BulkPublish(ctx context.Context, ids []string) *domain.BulkResult

	// BulkReject rejects each id independently and tallies the outcome
	BulkReject(ctx context.Context, ids []string) *domain.BulkResult
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
	"github.com/custodia-labs/continuum/internal/metrics"
)

// Ensure moderationService implements ModerationService
var _ driving.ModerationService = (*moderationService)(nil)

type moderationService struct {
	store  driven.PostmortemStore
	cache  driven.PostmortemCache
	logger *slog.Logger
}

// ModerationServiceConfig holds dependencies for the moderation service.
type ModerationServiceConfig struct {
	Store  driven.PostmortemStore
	Cache  driven.PostmortemCache // optional; purged when published content changes
	Logger *slog.Logger
}

// NewModerationService creates a new ModerationService
func NewModerationService(cfg ModerationServiceConfig) driving.ModerationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &moderationService{
		store:  cfg.Store,
		cache:  cfg.Cache,
		logger: logger.With("component", "moderation"),
	}
}

// Queue lists pending entries, newest first
func (s *moderationService) Queue(ctx context.Context) ([]*domain.Postmortem, error) {
	return s.store.ListByStatus(ctx, domain.StatusPending)
}

// Publish moves a pending entry to published
func (s *moderationService) Publish(ctx context.Context, id string) (*domain.Postmortem, error) {
	p, err := s.transition(ctx, id, domain.StatusPublished)
	metrics.RecordModeration("publish", err)
	return p, err
}

// Reject moves a pending entry to rejected
func (s *moderationService) Reject(ctx context.Context, id string) (*domain.Postmortem, error) {
	p, err := s.transition(ctx, id, domain.StatusRejected)
	metrics.RecordModeration("reject", err)
	return p, err
}

// Delete removes an entry whatever its status
func (s *moderationService) Delete(ctx context.Context, id string) error {
	p, err := s.store.Get(ctx, id)
	if err == nil {
		err = s.store.Delete(ctx, id)
	}
	metrics.RecordModeration("delete", err)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusPublished {
		s.purgeCache()
	}
	s.logger.Info("postmortem deleted", "id", id, "status", p.Status)
	return nil
}

// BulkPublish publishes each id independently
func (s *moderationService) BulkPublish(ctx context.Context, ids []string) *domain.BulkResult {
	return s.bulk(ctx, ids, s.Publish)
}

// BulkReject rejects each id independently
func (s *moderationService) BulkReject(ctx context.Context, ids []string) *domain.BulkResult {
	return s.bulk(ctx, ids, s.Reject)
}

func (s *moderationService) bulk(
	ctx context.Context,
	ids []string,
	action func(context.Context, string) (*domain.Postmortem, error),
) *domain.BulkResult {
	result := &domain.BulkResult{}
	for _, id := range ids {
		if _, err := action(ctx, id); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, domain.BulkFailure{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded++
	}
	return result
}

func (s *moderationService) transition(ctx context.Context, id string, target domain.Status) (*domain.Postmortem, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, changed, err := p.Transition(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s entry cannot become %s", err, p.Status, target)
	}
	if !changed {
		return p, nil
	}

	from := p.Status
	ok, err := s.store.SetStatus(ctx, id, from, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Moved or deleted since it was read.
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s entry cannot become %s", domain.ErrInvalidTransition, current.Status, target)
	}
	p.Status = next

	if next == domain.StatusPublished {
		s.purgeCache()
	}
	s.logger.Info("postmortem moderated", "id", id, "status", next)
	return p, nil
}

func (s *moderationService) purgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

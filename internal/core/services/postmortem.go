package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
	"github.com/custodia-labs/continuum/internal/metrics"
)

// Ensure postmortemService implements PostmortemService
var _ driving.PostmortemService = (*postmortemService)(nil)

type postmortemService struct {
	store driven.PostmortemStore
	cache driven.PostmortemCache
}

// NewPostmortemService creates the public listing service. cache may be nil.
func NewPostmortemService(store driven.PostmortemStore, cache driven.PostmortemCache) driving.PostmortemService {
	return &postmortemService{store: store, cache: cache}
}

// List returns one page of entries. Only published entries are visible
// through this service whatever status the filter asks for.
func (s *postmortemService) List(ctx context.Context, filter domain.PostmortemFilter) (*domain.PostmortemPage, error) {
	filter = filter.Normalize()
	filter.Status = domain.StatusPublished

	if filter.Severity != "" && !filter.Severity.IsValid() {
		return nil, domain.NewValidationError("severity", "must be one of critical, high, medium, low")
	}

	key := cacheKey(filter)
	if s.cache != nil {
		if page, ok := s.cache.Get(key); ok {
			metrics.RecordCacheAccess(true)
			return page, nil
		}
		metrics.RecordCacheAccess(false)
	}

	entries, total, err := s.store.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &domain.PostmortemPage{Data: entries, Total: total}

	if s.cache != nil {
		s.cache.Set(key, page)
	}
	return page, nil
}

// Get retrieves a published entry. Unpublished entries are reported as not found.
func (s *postmortemService) Get(ctx context.Context, id string) (*domain.Postmortem, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusPublished {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Companies lists companies having published entries
func (s *postmortemService) Companies(ctx context.Context) ([]string, error) {
	companies, err := s.store.Companies(ctx, domain.StatusPublished)
	if errors.Is(err, domain.ErrNotFound) {
		return []string{}, nil
	}
	return companies, err
}

func cacheKey(f domain.PostmortemFilter) string {
	return fmt.Sprintf("%s|%s|%s|%s|%t|%d|%d", f.Status, f.Company, f.Severity, f.SortBy, f.SortDesc, f.Limit, f.Offset)
}

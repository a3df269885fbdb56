package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
	"github.com/custodia-labs/continuum/internal/validation"
)

// Ensure sourceService implements SourceService
var _ driving.SourceService = (*sourceService)(nil)

// sourceService implements the SourceService interface
type sourceService struct {
	sourceStore driven.SourceStore
	now         func() time.Time
}

// NewSourceService creates a new SourceService
func NewSourceService(sourceStore driven.SourceStore) driving.SourceService {
	return &sourceService{
		sourceStore: sourceStore,
		now:         time.Now,
	}
}

// Create validates and registers a new source
func (s *sourceService) Create(ctx context.Context, req domain.SourceInput) (*domain.Source, error) {
	req.Company = strings.TrimSpace(req.Company)
	req.Slug = strings.TrimSpace(req.Slug)
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, err
	}
	if err := domain.ValidateSourceConfig(req.Method, req.Config); err != nil {
		return nil, err
	}
	if err := s.checkSlugFree(ctx, req.Slug, ""); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.now().UTC()
	source := &domain.Source{
		ID:        uuid.NewString(),
		Company:   req.Company,
		Slug:      req.Slug,
		Method:    req.Method,
		Config:    cloneConfig(req.Config),
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sourceStore.Save(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// Get retrieves a source by ID
func (s *sourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceStore.Get(ctx, id)
}

// List retrieves all sources
func (s *sourceService) List(ctx context.Context) ([]*domain.Source, error) {
	return s.sourceStore.List(ctx)
}

// Update applies a partial update to a source
func (s *sourceService) Update(ctx context.Context, id string, req domain.SourceUpdate) (*domain.Source, error) {
	source, err := s.sourceStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Company != nil {
		company := strings.TrimSpace(*req.Company)
		if company == "" {
			return nil, domain.NewValidationError("company", "is required")
		}
		source.Company = company
	}

	if req.Slug != nil {
		slug := strings.TrimSpace(*req.Slug)
		if !domain.ValidSlug(slug) {
			return nil, domain.NewValidationError("slug", "must contain only lowercase letters, digits and single hyphens")
		}
		if slug != source.Slug {
			if err := s.checkSlugFree(ctx, slug, id); err != nil {
				return nil, err
			}
		}
		source.Slug = slug
	}

	if req.Config != nil {
		if err := domain.ValidateSourceConfig(source.Method, req.Config); err != nil {
			return nil, err
		}
		source.Config = cloneConfig(req.Config)
	}

	if req.Active != nil {
		source.Active = *req.Active
	}

	source.UpdatedAt = s.now().UTC()

	if err := s.sourceStore.Save(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// Delete removes a source. Postmortems it produced stay in place.
func (s *sourceService) Delete(ctx context.Context, id string) error {
	return s.sourceStore.Delete(ctx, id)
}

func (s *sourceService) checkSlugFree(ctx context.Context, slug, selfID string) error {
	existing, err := s.sourceStore.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return &domain.ValidationError{Field: "slug", Message: "slug \"" + slug + "\" is already in use", Conflict: true}
	}
	return nil
}

func cloneConfig(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

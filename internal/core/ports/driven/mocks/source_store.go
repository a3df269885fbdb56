package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.SourceStore = (*MockSourceStore)(nil)

// MockSourceStore is a mock implementation of SourceStore for testing
type MockSourceStore struct {
	mu      sync.RWMutex
	sources map[string]*domain.Source

	// SaveErr, when set, is returned by Save
	SaveErr error
}

// NewMockSourceStore creates a new MockSourceStore
func NewMockSourceStore() *MockSourceStore {
	return &MockSourceStore{
		sources: make(map[string]*domain.Source),
	}
}

func (m *MockSourceStore) Save(ctx context.Context, source *domain.Source) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *source
	m.sources[source.ID] = &cp
	return nil
}

func (m *MockSourceStore) Get(ctx context.Context, id string) (*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	source, ok := m.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *source
	return &cp, nil
}

func (m *MockSourceStore) GetBySlug(ctx context.Context, slug string) (*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, source := range m.sources {
		if source.Slug == slug {
			cp := *source
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSourceStore) List(ctx context.Context) ([]*domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Source, 0, len(m.sources))
	for _, source := range m.sources {
		cp := *source
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockSourceStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sources, id)
	return nil
}

func (m *MockSourceStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	source, ok := m.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	source.LastSyncedAt = &at
	return nil
}

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.PostmortemStore = (*MockPostmortemStore)(nil)

// MockPostmortemStore is a mock implementation of PostmortemStore for testing
type MockPostmortemStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.Postmortem

	// Custom behavior hooks (optional)
	InsertFn    func(p *domain.Postmortem) error
	SetStatusFn func(id string, status domain.Status) error
}

// NewMockPostmortemStore creates a new MockPostmortemStore
func NewMockPostmortemStore() *MockPostmortemStore {
	return &MockPostmortemStore{
		entries: make(map[string]*domain.Postmortem),
	}
}

func (m *MockPostmortemStore) Insert(ctx context.Context, p *domain.Postmortem) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[p.ID]; ok {
		return &domain.ValidationError{Field: "id", Message: "already exists", Conflict: true}
	}
	cp := *p
	m.entries[p.ID] = &cp
	return nil
}

func (m *MockPostmortemStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok, nil
}

func (m *MockPostmortemStore) Get(ctx context.Context, id string) (*domain.Postmortem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPostmortemStore) SetStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	if m.SetStatusFn != nil {
		if err := m.SetStatusFn(id, to); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (m *MockPostmortemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MockPostmortemStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Postmortem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []*domain.Postmortem{}
	for _, p := range m.entries {
		if p.Status == status {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Search filters by company, severity and status and orders by created_at
// only. Sort columns are exercised against PostgreSQL.
func (m *MockPostmortemStore) Search(ctx context.Context, filter domain.PostmortemFilter) ([]*domain.Postmortem, int, error) {
	m.mu.RLock()
	matched := []*domain.Postmortem{}
	for _, p := range m.entries {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Company != "" && p.Company != filter.Company {
			continue
		}
		if filter.Severity != "" && (p.Severity == nil || *p.Severity != filter.Severity) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Postmortem{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (m *MockPostmortemStore) Companies(ctx context.Context, status domain.Status) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	result := []string{}
	for _, p := range m.entries {
		if p.Status == status && !seen[p.Company] {
			seen[p.Company] = true
			result = append(result, p.Company)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Count returns the number of stored entries (for test assertions).
func (m *MockPostmortemStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

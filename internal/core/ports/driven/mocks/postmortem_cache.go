package mocks

import (
	"sync"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.PostmortemCache = (*MockPostmortemCache)(nil)

// MockPostmortemCache is an unbounded map cache that counts purges
type MockPostmortemCache struct {
	mu     sync.Mutex
	pages  map[string]*domain.PostmortemPage
	Purges int
}

// NewMockPostmortemCache creates a new MockPostmortemCache
func NewMockPostmortemCache() *MockPostmortemCache {
	return &MockPostmortemCache{pages: make(map[string]*domain.PostmortemPage)}
}

func (m *MockPostmortemCache) Get(key string) (*domain.PostmortemPage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[key]
	return page, ok
}

func (m *MockPostmortemCache) Set(key string, page *domain.PostmortemPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[key] = page
}

func (m *MockPostmortemCache) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = make(map[string]*domain.PostmortemPage)
	m.Purges++
}

// Len returns the number of cached pages (for test assertions).
func (m *MockPostmortemCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

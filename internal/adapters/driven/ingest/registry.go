// Package ingest resolves ingesters by method and holds the HTTP plumbing
// they share. Each method lives in its own subpackage.
package ingest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.IngesterRegistry = (*Registry)(nil)

// Registry maps ingestion methods to their ingesters.
type Registry struct {
	mu        sync.RWMutex
	ingesters map[domain.Method]driven.Ingester
}

// NewRegistry creates a registry holding the given ingesters.
func NewRegistry(ingesters ...driven.Ingester) *Registry {
	r := &Registry{ingesters: make(map[domain.Method]driven.Ingester)}
	for _, in := range ingesters {
		r.Register(in)
	}
	return r
}

// Register adds or replaces the ingester for its method.
func (r *Registry) Register(in driven.Ingester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingesters[in.Method()] = in
}

// Get returns the ingester for method.
func (r *Registry) Get(method domain.Method) (driven.Ingester, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.ingesters[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMethod, method)
	}
	return in, nil
}

// Methods returns the registered methods in sorted order.
func (r *Registry) Methods() []domain.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]domain.Method, 0, len(r.ingesters))
	for m := range r.ingesters {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

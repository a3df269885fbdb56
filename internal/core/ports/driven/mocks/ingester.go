package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var (
	_ driven.Ingester         = (*MockIngester)(nil)
	_ driven.IngesterRegistry = (*MockIngesterRegistry)(nil)
)

// MockIngester replays fixed progress events and entries
type MockIngester struct {
	M        domain.Method
	Progress []domain.SyncEvent
	Entries  []*domain.Postmortem
	Err      error

	// Since records the cutoff passed to the last Collect call
	Since *time.Time
}

func (m *MockIngester) Method() domain.Method { return m.M }

func (m *MockIngester) Collect(ctx context.Context, source *domain.Source, since *time.Time, progress driven.ProgressFunc) ([]*domain.Postmortem, error) {
	m.Since = since
	for _, ev := range m.Progress {
		progress(ev)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*domain.Postmortem, len(m.Entries))
	for i, p := range m.Entries {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// MockIngesterRegistry maps methods to ingesters
type MockIngesterRegistry struct {
	Ingesters map[domain.Method]driven.Ingester
}

// NewMockIngesterRegistry registers the given ingesters by their method
func NewMockIngesterRegistry(ingesters ...driven.Ingester) *MockIngesterRegistry {
	r := &MockIngesterRegistry{Ingesters: make(map[domain.Method]driven.Ingester)}
	for _, in := range ingesters {
		r.Ingesters[in.Method()] = in
	}
	return r
}

func (r *MockIngesterRegistry) Get(method domain.Method) (driven.Ingester, error) {
	in, ok := r.Ingesters[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMethod, method)
	}
	return in, nil
}

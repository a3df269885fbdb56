// Package memory holds process-local adapters backed by ttlcache.
// They serve single-instance deployments that run without Redis.
package memory

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps console sessions in memory until they expire.
// Sessions do not survive a restart.
type SessionStore struct {
	cache *ttlcache.Cache[string, domain.Session]
}

// NewSessionStore creates the store and starts its expiry loop.
// Call Close to stop it.
func NewSessionStore() *SessionStore {
	cache := ttlcache.New[string, domain.Session](
		ttlcache.WithDisableTouchOnHit[string, domain.Session](),
	)
	go cache.Start()
	return &SessionStore{cache: cache}
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(session.ID, *session, ttl)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, domain.ErrSessionNotFound
	}
	session := item.Value()
	if session.IsExpired() {
		s.cache.Delete(id)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Close stops the expiry loop.
func (s *SessionStore) Close() {
	s.cache.Stop()
}

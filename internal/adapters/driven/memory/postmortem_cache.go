package memory

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.PostmortemCache = (*PostmortemCache)(nil)

// DefaultListingTTL bounds how stale a public listing page can be
const DefaultListingTTL = time.Minute

// PostmortemCache holds public listing pages keyed by normalized query.
// Moderation purges it so a published entry shows up on the next request.
type PostmortemCache struct {
	cache *ttlcache.Cache[string, *domain.PostmortemPage]
}

// NewPostmortemCache creates a cache whose pages live for ttl, at most
// maxPages at once. A zero ttl uses DefaultListingTTL.
func NewPostmortemCache(ttl time.Duration, maxPages uint64) *PostmortemCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	opts := []ttlcache.Option[string, *domain.PostmortemPage]{
		ttlcache.WithTTL[string, *domain.PostmortemPage](ttl),
		ttlcache.WithDisableTouchOnHit[string, *domain.PostmortemPage](),
	}
	if maxPages > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *domain.PostmortemPage](maxPages))
	}
	cache := ttlcache.New(opts...)
	go cache.Start()
	return &PostmortemCache{cache: cache}
}

func (c *PostmortemCache) Get(key string) (*domain.PostmortemPage, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *PostmortemCache) Set(key string, page *domain.PostmortemPage) {
	c.cache.Set(key, page, ttlcache.DefaultTTL)
}

func (c *PostmortemCache) Purge() {
	c.cache.DeleteAll()
}

// Len reports how many pages are cached
func (c *PostmortemCache) Len() int {
	return c.cache.Len()
}

// Close stops the expiry loop.
func (c *PostmortemCache) Close() {
	c.cache.Stop()
}

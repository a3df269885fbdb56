package driven

import "github.com/custodia-labs/continuum/internal/core/domain"

// PostmortemCache holds rendered public listing pages keyed by normalized query
type PostmortemCache interface {
	Get(key string) (*domain.PostmortemPage, bool)
	Set(key string, page *domain.PostmortemPage)
	// Purge drops every cached page
	Purge()
}

// Package rss collects postmortems from an engineering blog feed,
// keeping only entries that read like incident write-ups.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest"
	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.Ingester = (*Ingester)(nil)

const acceptFeeds = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// Ingester implements the rss method for RSS, Atom and JSON feeds.
type Ingester struct {
	fetcher *ingest.Fetcher
}

// NewIngester creates the rss ingester.
func NewIngester(fetcher *ingest.Fetcher) *Ingester {
	return &Ingester{fetcher: fetcher}
}

func (i *Ingester) Method() domain.Method { return domain.MethodRSS }

func (i *Ingester) Collect(ctx context.Context, source *domain.Source, since *time.Time, progress driven.ProgressFunc) ([]*domain.Postmortem, error) {
	feedURL := source.Config["feed_url"]
	if feedURL == "" {
		return nil, domain.NewValidationError("config", "rss source requires feed_url")
	}

	body, err := i.fetcher.Get(ctx, feedURL, acceptFeeds)
	if err != nil {
		return nil, err
	}
	progress(domain.FetchingEvent(1, 1))

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	keywords := ingest.Keywords(source.Config["keywords"])
	seen := make(map[string]bool)
	var entries []*domain.Postmortem
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}
		text := item.Title + " " + item.Description + " " + strings.Join(item.Categories, " ")
		if !ingest.MatchesAny(text, keywords) {
			continue
		}

		link := strings.TrimSpace(item.Link)
		key := link
		if key == "" {
			key = item.GUID
		}
		if key == "" {
			key = item.Title
		}
		id := ingest.Hash(key, 16)
		if seen[id] {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil {
			t := published.UTC()
			published = &t
		}
		if ingest.Before(published, since) {
			continue
		}

		seen[id] = true
		p := ingest.NewEntry(source, id, item.Title, link)
		p.PublishedAt = published
		p.Tags = ingest.MergeTags([]string{"rss", source.Slug}, item.Categories...)
		entries = append(entries, p)
	}
	return entries, nil
}

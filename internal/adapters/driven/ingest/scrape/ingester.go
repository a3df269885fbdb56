// Package scrape collects postmortems from an HTML index page using CSS
// selectors configured per source.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest"
	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.Ingester = (*Ingester)(nil)

// Ingester implements the scrape method.
type Ingester struct {
	fetcher *ingest.Fetcher
}

// NewIngester creates the scrape ingester.
func NewIngester(fetcher *ingest.Fetcher) *Ingester {
	return &Ingester{fetcher: fetcher}
}

func (i *Ingester) Method() domain.Method { return domain.MethodScrape }

// Selectors are the CSS selectors of a scrape source.
type Selectors struct {
	Item  string
	Title string
	Link  string
	Date  string
}

func selectorsFrom(config map[string]string) Selectors {
	return Selectors{
		Item:  config["selector"],
		Title: config["title_selector"],
		Link:  config["link_selector"],
		Date:  config["date_selector"],
	}
}

func (i *Ingester) Collect(ctx context.Context, source *domain.Source, since *time.Time, progress driven.ProgressFunc) ([]*domain.Postmortem, error) {
	pageURL := source.Config["url"]
	sel := selectorsFrom(source.Config)
	if pageURL == "" || sel.Item == "" {
		return nil, domain.NewValidationError("config", "scrape source requires url and selector")
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, domain.NewValidationError("config", "invalid url: %v", err)
	}

	body, err := i.fetcher.Get(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	progress(domain.FetchingEvent(1, 1))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	items := Extract(doc, base, sel)
	seen := make(map[string]bool)
	var entries []*domain.Postmortem
	for _, it := range items {
		if ingest.Before(it.Published, since) {
			continue
		}
		id := ingest.EntryID(source.Slug, it.Link, it.Title)
		if seen[id] {
			continue
		}
		seen[id] = true

		p := ingest.NewEntry(source, id, it.Title, it.Link)
		if p.URL == "" {
			p.URL = pageURL
		}
		p.PublishedAt = it.Published
		p.Tags = []string{"scrape", source.Slug}
		entries = append(entries, p)
	}
	return entries, nil
}

// Item is one entry found on a page.
type Item struct {
	Title     string
	Link      string
	Published *time.Time
}

// Extract applies the selectors to doc. Relative links are resolved
// against base. Items without a title are dropped.
func Extract(doc *goquery.Document, base *url.URL, sel Selectors) []Item {
	var items []Item
	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		title := collapse(s.Text())
		if sel.Title != "" {
			title = collapse(s.Find(sel.Title).First().Text())
		}
		if title == "" {
			return
		}

		anchor := s.Find("a[href]").First()
		if sel.Link != "" {
			anchor = s.Find(sel.Link).First()
		}
		if goquery.NodeName(s) == "a" && anchor.Length() == 0 {
			anchor = s
		}
		link := ""
		if href, ok := anchor.Attr("href"); ok {
			link = resolve(base, href)
		}

		var published *time.Time
		if sel.Date != "" {
			d := s.Find(sel.Date).First()
			if dt, ok := d.Attr("datetime"); ok {
				published = ingest.ParseDate(dt)
			}
			if published == nil {
				published = ingest.ParseDate(collapse(d.Text()))
			}
		} else if dt, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
			published = ingest.ParseDate(dt)
		}

		items = append(items, Item{Title: title, Link: link, Published: published})
	})
	return items
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// IncidentKeywords are the default words an rss entry must mention to be kept.
var IncidentKeywords = []string{
	"incident", "outage", "postmortem", "post-mortem", "reliability", "downtime",
	"degradation", "failure", "root cause", "retrospective", "resilience",
}

// Hash returns the first n hex characters of sha256(s).
func Hash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

// EntryID derives a stable id from the source slug and the entry url,
// falling back to the title when the entry has no url.
func EntryID(slug, url, title string) string {
	key := url
	if key == "" {
		key = title
	}
	return slug + "-" + Hash(key, 12)
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ParseDate understands the handful of date shapes incident pages use.
// It returns nil for empty or unrecognised input.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Before reports whether the entry is known to predate since.
// Undated entries are never filtered.
func Before(published, since *time.Time) bool {
	return since != nil && published != nil && published.Before(*since)
}

// MergeTags appends extra to base, skipping blanks and case-insensitive duplicates.
func MergeTags(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range append(append([]string{}, base...), extra...) {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// Keywords splits a comma separated override, or returns the defaults.
func Keywords(override string) []string {
	if strings.TrimSpace(override) == "" {
		return IncidentKeywords
	}
	var out []string
	for _, k := range strings.Split(override, ",") {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// MatchesAny reports whether text contains any keyword, ignoring case.
func MatchesAny(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// NewEntry builds a candidate with the fields every ingester sets.
func NewEntry(source *domain.Source, id, title, url string) *domain.Postmortem {
	return &domain.Postmortem{
		ID:               id,
		SourceID:         source.ID,
		Company:          source.Company,
		Title:            strings.TrimSpace(title),
		URL:              url,
		AffectedServices: []string{},
		Tags:             []string{},
	}
}

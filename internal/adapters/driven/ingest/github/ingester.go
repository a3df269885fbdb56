// Package github collects postmortems from a JSON incident list versioned
// in a GitHub repository. Every sampled commit of the file is read so
// entries that were later edited out are still found.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest"
	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.Ingester = (*Ingester)(nil)

// DefaultMaxSamples bounds how many file versions one sync reads.
const DefaultMaxSamples = 20

// Ingester implements the github_json method.
type Ingester struct {
	client     *Client
	maxSamples int
	logger     *slog.Logger
}

// NewIngester creates the github_json ingester. maxSamples <= 0 uses
// DefaultMaxSamples.
func NewIngester(client *Client, maxSamples int, logger *slog.Logger) *Ingester {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{client: client, maxSamples: maxSamples, logger: logger}
}

func (i *Ingester) Method() domain.Method { return domain.MethodGitHubJSON }

func (i *Ingester) Collect(ctx context.Context, source *domain.Source, since *time.Time, progress driven.ProgressFunc) ([]*domain.Postmortem, error) {
	repo, branch, file := source.Config["repo"], source.Config["branch"], source.Config["file"]
	if repo == "" || file == "" {
		return nil, domain.NewValidationError("config", "github_json source requires repo and file")
	}
	if branch == "" {
		branch = "main"
	}

	var commits []Commit
	for page := 1; ; page++ {
		batch, more, err := i.client.ListCommits(ctx, repo, branch, file, since, page)
		if err != nil {
			return nil, err
		}
		commits = append(commits, batch...)
		progress(domain.CommitsPageEvent(len(commits)))
		if !more {
			break
		}
	}

	sample := Sample(commits, i.maxSamples)
	progress(domain.CommitsDoneEvent(len(commits), len(sample),
		fmt.Sprintf("Sampling %d of %d commits", len(sample), len(commits))))

	seen := make(map[string]bool)
	var entries []*domain.Postmortem
	for n, commit := range sample {
		body, err := i.client.FileAt(ctx, repo, commit.SHA, file)
		if err != nil {
			return nil, err
		}
		progress(domain.FetchingEvent(n+1, len(sample)))

		incidents, err := ParseIncidents(body)
		if err != nil {
			i.logger.Warn("skipping unparsable file version", "source", source.Slug, "sha", commit.SHA, "error", err)
			continue
		}
		for _, inc := range incidents {
			p := inc.toPostmortem(source, repo, commit.SHA, file)
			if p == nil || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			entries = append(entries, p)
		}
	}
	return entries, nil
}

// Sample picks at most max commits spaced evenly across the list.
// The first commit, the newest, is always included.
func Sample(commits []Commit, max int) []Commit {
	n := len(commits)
	if n <= max {
		return commits
	}
	if max <= 1 {
		return commits[:1]
	}
	out := make([]Commit, 0, max)
	last := -1
	for k := 0; k < max; k++ {
		idx := int(math.Round(float64(k) * float64(n-1) / float64(max-1)))
		if idx == last {
			continue
		}
		last = idx
		out = append(out, commits[idx])
	}
	return out
}

// Incident is one object of the tracked JSON array. Field names vary
// between lists, so several spellings are accepted.
type Incident map[string]any

// ParseIncidents decodes the tracked file. A top level object with an
// "incidents" array is accepted as well as a bare array.
func ParseIncidents(body []byte) ([]Incident, error) {
	var list []Incident
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Incidents []Incident `json:"incidents"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode incident list: %w", err)
	}
	if wrapped.Incidents == nil {
		return nil, fmt.Errorf("decode incident list: no incidents array")
	}
	return wrapped.Incidents, nil
}

func (inc Incident) str(keys ...string) string {
	for _, k := range keys {
		if s, ok := inc[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (inc Incident) list(key string) []string {
	switch v := inc[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(v, ",")
	}
	return nil
}

func (inc Incident) toPostmortem(source *domain.Source, repo, sha, file string) *domain.Postmortem {
	title := inc.str("title", "name")
	if title == "" {
		return nil
	}
	link := inc.str("url", "link")

	p := ingest.NewEntry(source, ingest.EntryID(source.Slug, link, title), title, link)
	if p.URL == "" {
		p.URL = fmt.Sprintf("https://github.com/%s/blob/%s/%s", repo, sha, file)
	}
	p.PublishedAt = ingest.ParseDate(inc.str("date", "published_at", "start_date"))
	p.Severity = domain.ParseSeverity(strings.ToLower(inc.str("severity")))
	p.AffectedServices = ingest.MergeTags(nil, inc.list("services")...)
	if rc := inc.str("root_cause"); rc != "" {
		p.RootCauseCategory = &rc
	}
	p.Tags = ingest.MergeTags([]string{"github", "outage", source.Slug}, inc.list("tags")...)
	return p
}

// Package statuspage collects resolved incidents from an Atlassian
// Statuspage public API.
package statuspage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/continuum/internal/adapters/driven/ingest"
	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
)

var _ driven.Ingester = (*Ingester)(nil)

// Ingester implements the statuspage_api method.
type Ingester struct {
	fetcher *ingest.Fetcher
}

// NewIngester creates the statuspage_api ingester.
func NewIngester(fetcher *ingest.Fetcher) *Ingester {
	return &Ingester{fetcher: fetcher}
}

func (i *Ingester) Method() domain.Method { return domain.MethodStatuspageAPI }

type component struct {
	Name string `json:"name"`
}

// incident mirrors the fields of /api/v2/incidents.json the ingester reads.
type incident struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Impact     string      `json:"impact"`
	Shortlink  string      `json:"shortlink"`
	CreatedAt  *time.Time  `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at"`
	Components []component `json:"components"`
}

// impactSeverity maps Statuspage impact levels onto severities
var impactSeverity = map[string]domain.Severity{
	"critical": domain.SeverityCritical,
	"major":    domain.SeverityHigh,
	"minor":    domain.SeverityMedium,
	"none":     domain.SeverityLow,
}

func (i *Ingester) Collect(ctx context.Context, source *domain.Source, since *time.Time, progress driven.ProgressFunc) ([]*domain.Postmortem, error) {
	base := strings.TrimSuffix(strings.TrimSpace(source.Config["statuspage_url"]), "/")
	if base == "" {
		return nil, domain.NewValidationError("config", "statuspage_api source requires statuspage_url")
	}

	body, err := i.fetcher.Get(ctx, base+"/api/v2/incidents.json", "application/json")
	if err != nil {
		return nil, err
	}
	progress(domain.FetchingEvent(1, 1))

	var payload struct {
		Incidents []incident `json:"incidents"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode incidents from %s: %w", base, err)
	}

	var entries []*domain.Postmortem
	for _, inc := range payload.Incidents {
		if (inc.Status != "resolved" && inc.Status != "postmortem") || inc.ID == "" || inc.Name == "" {
			continue
		}
		if ingest.Before(inc.CreatedAt, since) {
			continue
		}
		entries = append(entries, toPostmortem(source, base, inc))
	}
	return entries, nil
}

func toPostmortem(source *domain.Source, base string, inc incident) *domain.Postmortem {
	link := inc.Shortlink
	if link == "" {
		link = base + "/incidents/" + inc.ID
	}

	p := ingest.NewEntry(source, source.Slug+"-"+inc.ID, inc.Name, link)
	p.PublishedAt = inc.ResolvedAt
	if p.PublishedAt == nil {
		p.PublishedAt = inc.CreatedAt
	}
	if sev, ok := impactSeverity[inc.Impact]; ok {
		p.Severity = &sev
	}
	names := make([]string, 0, len(inc.Components))
	for _, c := range inc.Components {
		names = append(names, c.Name)
	}
	p.AffectedServices = ingest.MergeTags(nil, names...)
	p.Tags = []string{"statuspage", source.Slug}
	return p
}

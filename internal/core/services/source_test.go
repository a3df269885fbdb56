package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven/mocks"
)

func githubInput(slug string) domain.SourceInput {
	return domain.SourceInput{
		Company: "Acme",
		Slug:    slug,
		Method:  domain.MethodGitHubJSON,
		Config:  map[string]string{"repo": "acme/status", "branch": "main", "file": "incidents.json"},
	}
}

func TestSourceService_Create(t *testing.T) {
	sourceStore := mocks.NewMockSourceStore()
	svc := NewSourceService(sourceStore)
	ctx := context.Background()

	if _, err := svc.Create(ctx, githubInput("taken")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	inactive := false
	tests := []struct {
		name      string
		req       domain.SourceInput
		wantField string
		conflict  bool
	}{
		{name: "valid source", req: githubInput("acme")},
		{
			name: "inactive source",
			req: domain.SourceInput{
				Company: "Example", Slug: "example", Method: domain.MethodRSS,
				Config: map[string]string{"feed_url": "https://example.com/feed"}, Active: &inactive,
			},
		},
		{name: "duplicate slug", req: githubInput("taken"), wantField: "slug", conflict: true},
		{
			name:      "unknown method",
			req:       domain.SourceInput{Company: "Acme", Slug: "acme-ftp", Method: "ftp"},
			wantField: "method",
		},
		{
			name: "missing config key",
			req: domain.SourceInput{
				Company: "Acme", Slug: "acme-scrape", Method: domain.MethodScrape,
				Config: map[string]string{"url": "https://acme.com/blog"},
			},
			wantField: "config",
		},
		{
			name:      "missing company",
			req:       domain.SourceInput{Slug: "acme-2", Method: domain.MethodRSS, Config: map[string]string{"feed_url": "x"}},
			wantField: "company",
		},
		{
			name:      "malformed slug",
			req:       domain.SourceInput{Company: "Acme", Slug: "Acme Corp", Method: domain.MethodRSS, Config: map[string]string{"feed_url": "x"}},
			wantField: "slug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := svc.Create(ctx, tt.req)

			if tt.wantField != "" {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if ve.Field != tt.wantField {
					t.Errorf("expected field %s, got %s", tt.wantField, ve.Field)
				}
				if ve.Conflict != tt.conflict {
					t.Errorf("expected conflict=%v", tt.conflict)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if source.ID == "" {
				t.Error("expected server-assigned id")
			}
			if source.LastSyncedAt != nil {
				t.Error("expected last_synced_at to be null")
			}
			wantActive := tt.req.Active == nil || *tt.req.Active
			if source.Active != wantActive {
				t.Errorf("expected active=%v", wantActive)
			}
			if _, err := sourceStore.Get(ctx, source.ID); err != nil {
				t.Errorf("expected source to be stored: %v", err)
			}
		})
	}
}

func TestSourceService_CreateCopiesConfig(t *testing.T) {
	svc := NewSourceService(mocks.NewMockSourceStore())
	req := githubInput("acme")

	source, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req.Config["repo"] = "changed/later"
	if source.Config["repo"] != "acme/status" {
		t.Error("source config should not alias the request map")
	}
}

func TestSourceService_ListNewestFirst(t *testing.T) {
	sourceStore := mocks.NewMockSourceStore()
	svc := NewSourceService(sourceStore).(*sourceService)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, slug := range []string{"first", "second", "third"} {
		offset := time.Duration(i) * time.Hour
		svc.now = func() time.Time { return base.Add(offset) }
		if _, err := svc.Create(ctx, githubInput(slug)); err != nil {
			t.Fatalf("create %s: %v", slug, err)
		}
	}

	sources, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	if sources[0].Slug != "third" || sources[2].Slug != "first" {
		t.Errorf("expected newest first, got %s, %s, %s", sources[0].Slug, sources[1].Slug, sources[2].Slug)
	}
}

func TestSourceService_Update(t *testing.T) {
	svc := NewSourceService(mocks.NewMockSourceStore())
	ctx := context.Background()

	a, _ := svc.Create(ctx, githubInput("alpha"))
	_, _ = svc.Create(ctx, githubInput("beta"))

	taken := "beta"
	if _, err := svc.Update(ctx, a.ID, domain.SourceUpdate{Slug: &taken}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected slug conflict, got %v", err)
	}

	same := "alpha"
	inactive := false
	updated, err := svc.Update(ctx, a.ID, domain.SourceUpdate{Slug: &same, Active: &inactive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Active {
		t.Error("expected source to be deactivated")
	}

	if _, err := svc.Update(ctx, a.ID, domain.SourceUpdate{Config: map[string]string{"repo": "x/y"}}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected config validation error, got %v", err)
	}

	if _, err := svc.Update(ctx, "missing", domain.SourceUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSourceService_Delete(t *testing.T) {
	svc := NewSourceService(mocks.NewMockSourceStore())
	ctx := context.Background()

	source, _ := svc.Create(ctx, githubInput("acme"))

	if err := svc.Delete(ctx, source.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sources, _ := svc.List(ctx)
	if len(sources) != 0 {
		t.Errorf("expected deleted source to vanish from list, got %d", len(sources))
	}
	if err := svc.Delete(ctx, source.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

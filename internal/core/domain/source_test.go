package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cloudflare", "cloudflare"},
		{"  Cloud Flare, Inc. ", "cloud-flare-inc"},
		{"GitHub", "github"},
		{"--Fly.io--", "fly-io"},
		{"Étoile", "toile"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidSlug(t *testing.T) {
	for _, s := range []string{"acme", "acme-corp", "a1-b2"} {
		if !ValidSlug(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "Acme", "acme--corp", "-acme", "acme_corp"} {
		if ValidSlug(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestMethodIsValid(t *testing.T) {
	for _, m := range Methods {
		if !m.IsValid() {
			t.Errorf("expected %s to be valid", m)
		}
		if _, ok := RequiredConfigKeys[m]; !ok {
			t.Errorf("missing required keys for %s", m)
		}
	}
	if Method("ftp").IsValid() {
		t.Error("expected ftp to be invalid")
	}
}

func TestParseGitHubBlobURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    GitHubLocation
		wantErr bool
	}{
		{
			name: "nested path",
			url:  "https://github.com/acme/status/blob/main/data/incidents.json",
			want: GitHubLocation{Repo: "acme/status", Branch: "main", File: "data/incidents.json"},
		},
		{
			name: "query string stripped",
			url:  "https://github.com/acme/status/blob/prod/incidents.json?plain=1",
			want: GitHubLocation{Repo: "acme/status", Branch: "prod", File: "incidents.json"},
		},
		{name: "tree url", url: "https://github.com/acme/status/tree/main/data", wantErr: true},
		{name: "repo root", url: "https://github.com/acme/status", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGitHubBlobURL(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSinceDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-15":           "2024-01-15T00:00:00Z",
		" 2024-01-15 ":         "2024-01-15T00:00:00Z",
		"2024-01-15T08:30:00Z": "2024-01-15T08:30:00Z",
		"":                     "",
	}
	for in, want := range tests {
		if got := NormalizeSinceDate(in); got != want {
			t.Errorf("NormalizeSinceDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildSourceConfig(t *testing.T) {
	tests := []struct {
		name    string
		method  Method
		form    map[string]string
		want    map[string]string
		wantErr bool
	}{
		{
			name:   "github blob url",
			method: MethodGitHubJSON,
			form:   map[string]string{"github_url": "https://github.com/acme/status/blob/main/incidents.json"},
			want:   map[string]string{"repo": "acme/status", "branch": "main", "file": "incidents.json"},
		},
		{
			name:   "github with since date",
			method: MethodGitHubJSON,
			form: map[string]string{
				"github_url": "https://github.com/acme/status/blob/main/incidents.json",
				"since_date": "2024-03-01",
			},
			want: map[string]string{
				"repo": "acme/status", "branch": "main", "file": "incidents.json",
				"since_date": "2024-03-01T00:00:00Z",
			},
		},
		{
			name:    "github malformed url",
			method:  MethodGitHubJSON,
			form:    map[string]string{"github_url": "https://gitlab.com/acme/status"},
			wantErr: true,
		},
		{
			name:    "github bad since date",
			method:  MethodGitHubJSON,
			form:    map[string]string{"github_url": "https://github.com/a/b/blob/main/f.json", "since_date": "yesterday"},
			wantErr: true,
		},
		{
			name:   "rss",
			method: MethodRSS,
			form:   map[string]string{"feed_url": "https://example.com/feed.xml", "url": "ignored"},
			want:   map[string]string{"feed_url": "https://example.com/feed.xml"},
		},
		{
			name:    "rss missing feed",
			method:  MethodRSS,
			form:    map[string]string{},
			wantErr: true,
		},
		{
			name:   "scrape",
			method: MethodScrape,
			form:   map[string]string{"url": "https://example.com/blog", "selector": "article"},
			want:   map[string]string{"url": "https://example.com/blog", "selector": "article"},
		},
		{
			name:    "scrape missing selector",
			method:  MethodScrape,
			form:    map[string]string{"url": "https://example.com/blog"},
			wantErr: true,
		},
		{
			name:   "statuspage",
			method: MethodStatuspageAPI,
			form:   map[string]string{"statuspage_url": "https://status.example.com"},
			want:   map[string]string{"statuspage_url": "https://status.example.com"},
		},
		{
			name:    "unknown method",
			method:  Method("ftp"),
			form:    map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSourceConfig(tt.method, tt.form)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateSourceConfigListsMissingKeys(t *testing.T) {
	err := ValidateSourceConfig(MethodGitHubJSON, map[string]string{"repo": "a/b"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Message != "missing required keys for github_json: branch, file" {
		t.Errorf("unexpected message %q", ve.Message)
	}
}

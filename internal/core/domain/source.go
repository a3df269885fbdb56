package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Method identifies how a source's postmortems are collected
type Method string

const (
	MethodGitHubJSON    Method = "github_json"
	MethodRSS           Method = "rss"
	MethodScrape        Method = "scrape"
	MethodStatuspageAPI Method = "statuspage_api"
)

// Methods lists every supported ingestion method
var Methods = []Method{MethodGitHubJSON, MethodRSS, MethodScrape, MethodStatuspageAPI}

// IsValid reports whether m is one of the supported methods
func (m Method) IsValid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// RequiredConfigKeys maps each method to the config keys it cannot run without
var RequiredConfigKeys = map[Method][]string{
	MethodGitHubJSON:    {"repo", "branch", "file"},
	MethodRSS:           {"feed_url"},
	MethodScrape:        {"url", "selector"},
	MethodStatuspageAPI: {"statuspage_url"},
}

// Source is a configured origin of postmortems
type Source struct {
	ID           string            `json:"id"`
	Company      string            `json:"company"`
	Slug         string            `json:"slug"`
	Method       Method            `json:"method"`
	Config       map[string]string `json:"config"`
	Active       bool              `json:"active"`
	LastSyncedAt *time.Time        `json:"last_synced_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SourceInput holds the caller-supplied fields of a source
type SourceInput struct {
	Company string            `json:"company" validate:"required,max=200"`
	Slug    string            `json:"slug" validate:"required,max=100,slug"`
	Method  Method            `json:"method" validate:"required,method"`
	Config  map[string]string `json:"config"`
	Active  *bool             `json:"active,omitempty"`
}

// SourceUpdate holds a partial update; nil fields are left unchanged
type SourceUpdate struct {
	Company *string           `json:"company,omitempty"`
	Slug    *string           `json:"slug,omitempty"`
	Config  map[string]string `json:"config,omitempty"`
	Active  *bool             `json:"active,omitempty"`
}

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	nonSlugRun        = regexp.MustCompile(`[^a-z0-9]+`)
	githubBlobPattern = regexp.MustCompile(`github\.com/([^/]+/[^/]+)/blob/([^/]+)/(.+)`)
)

// Slugify derives a URL-safe slug from a company name.
// "Cloud Flare, Inc." becomes "cloud-flare-inc".
func Slugify(company string) string {
	s := strings.ToLower(strings.TrimSpace(company))
	s = nonSlugRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s is a well-formed slug
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// GitHubLocation identifies one file on one branch of a GitHub repository
type GitHubLocation struct {
	Repo   string
	Branch string
	File   string
}

// ParseGitHubBlobURL extracts repo, branch and file path from a
// https://github.com/<owner>/<repo>/blob/<branch>/<path> URL.
func ParseGitHubBlobURL(raw string) (GitHubLocation, error) {
	m := githubBlobPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return GitHubLocation{}, NewValidationError("github_url", "must look like https://github.com/owner/repo/blob/branch/path")
	}
	file := m[3]
	if i := strings.IndexAny(file, "?#"); i >= 0 {
		file = file[:i]
	}
	if file == "" {
		return GitHubLocation{}, NewValidationError("github_url", "missing file path")
	}
	return GitHubLocation{Repo: m[1], Branch: m[2], File: file}, nil
}

// NormalizeSinceDate turns a bare YYYY-MM-DD date into an RFC 3339 timestamp
// at midnight UTC. Values that already carry a time are returned as-is.
func NormalizeSinceDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "T") {
		return s
	}
	return s + "T00:00:00Z"
}

// BuildSourceConfig turns console form fields into a method-specific config.
// It performs no network access. Form keys are the field names without the
// "config_" prefix.
func BuildSourceConfig(method Method, form map[string]string) (map[string]string, error) {
	get := func(k string) string { return strings.TrimSpace(form[k]) }
	config := make(map[string]string)

	switch method {
	case MethodGitHubJSON:
		loc, err := ParseGitHubBlobURL(get("github_url"))
		if err != nil {
			return nil, err
		}
		config["repo"] = loc.Repo
		config["branch"] = loc.Branch
		config["file"] = loc.File
		if since := NormalizeSinceDate(get("since_date")); since != "" {
			config["since_date"] = since
		}
	case MethodRSS:
		config["feed_url"] = get("feed_url")
		if kw := get("keywords"); kw != "" {
			config["keywords"] = kw
		}
	case MethodScrape:
		config["url"] = get("url")
		config["selector"] = get("selector")
		for _, k := range []string{"title_selector", "link_selector", "date_selector"} {
			if v := get(k); v != "" {
				config[k] = v
			}
		}
	case MethodStatuspageAPI:
		config["statuspage_url"] = get("statuspage_url")
	default:
		return nil, NewValidationError("method", "unknown method %q", method)
	}

	if err := ValidateSourceConfig(method, config); err != nil {
		return nil, err
	}
	return config, nil
}

// ValidateSourceConfig checks that every key required by method is present and non-empty
func ValidateSourceConfig(method Method, config map[string]string) error {
	required, ok := RequiredConfigKeys[method]
	if !ok {
		return NewValidationError("method", "unknown method %q", method)
	}
	var missing []string
	for _, k := range required {
		if strings.TrimSpace(config[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return NewValidationError("config", "missing required keys for %s: %s", method, strings.Join(missing, ", "))
	}
	if since := config["since_date"]; method == MethodGitHubJSON && since != "" {
		if _, err := time.Parse(time.RFC3339, since); err != nil {
			return NewValidationError("config", "since_date must be an RFC 3339 timestamp")
		}
	}
	return nil
}

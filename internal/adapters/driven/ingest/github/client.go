package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

// perPage is the largest page GitHub's commits endpoint serves.
const perPage = 100

// Client is the slice of the GitHub REST API the ingester needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	retryDelay time.Duration
	maxWait    time.Duration
}

// NewClient creates a GitHub API client. An empty token makes
// unauthenticated requests.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		maxRetries: 3,
		retryDelay: time.Second,
		maxWait:    5 * time.Minute,
	}
}

// Commit is one entry of the commits listing.
type Commit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// ListCommits lists one page of commits touching path on branch, newest first.
// It returns the page and whether another page may follow.
func (c *Client) ListCommits(ctx context.Context, repo, branch, path string, since *time.Time, page int) ([]Commit, bool, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("sha", branch)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}

	resp, err := c.doRequest(ctx, "/repos/"+repo+"/commits?"+q.Encode(), "application/vnd.github+json")
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	var commits []Commit
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return nil, false, fmt.Errorf("decode commits: %w", err)
	}
	return commits, len(commits) == perPage, nil
}

// FileAt returns the raw content of path at ref.
func (c *Client) FileAt(ctx context.Context, repo, ref, path string) ([]byte, error) {
	apiPath := fmt.Sprintf("/repos/%s/contents/%s?ref=%s", repo, escapePath(path), url.QueryEscape(ref))
	resp, err := c.doRequest(ctx, apiPath, "application/vnd.github.raw+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}
	return body, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// doRequest performs a GET with rate limit waits and 5xx retries.
func (c *Client) doRequest(ctx context.Context, path, accept string) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.UpstreamError{Err: err}
		}

		if wait, ok := c.rateLimitWait(resp); ok && attempt < c.maxRetries {
			resp.Body.Close()
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 500 || attempt == c.maxRetries {
			break
		}

		resp.Body.Close()
		if err := sleep(ctx, time.Duration(attempt+1)*c.retryDelay); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    "GitHub API: " + strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// rateLimitWait reports how long to wait when resp is a rate limit answer
// whose reset is close enough to wait for.
func (c *Client) rateLimitWait(resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			d := time.Duration(secs) * time.Second
			return d, d <= c.maxWait
		}
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return 0, false
	}
	reset, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if reset <= 0 {
		return 0, false
	}
	d := time.Until(time.Unix(reset, 0))
	if d < 0 {
		d = 0
	}
	return d, d <= c.maxWait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package apiclient is a typed client for the admin API. It is used by the
// console and by the sync command.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/metrics"
)

// AdminSecretHeader carries the shared admin credential.
const AdminSecretHeader = "X-Admin-Secret"

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// Config holds the settings of a Client.
type Config struct {
	BaseURL     string
	AdminSecret string
	// Timeout bounds plain JSON calls. Sync streams are only bounded by
	// their context.
	Timeout time.Duration
	// BreakerName labels the circuit breaker in metrics. Defaults to "continuum-api".
	BreakerName string
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	Logger         *slog.Logger
}

// Client calls the admin API. Every request goes through one circuit
// breaker; transport failures and 5xx answers count against it.
type Client struct {
	baseURL      string
	secret       string
	httpClient   *http.Client
	streamClient *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	logger       *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: api base url %q", domain.ErrValidation, cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "apiclient")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	name := cfg.BreakerName
	if name == "" {
		name = "continuum-api"
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		// Open after 5 straight failures, or 60% of at least 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL:      base.String(),
		secret:       cfg.AdminSecret,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		breaker:      breaker,
		logger:       logger,
	}, nil
}

// ListSources returns every registered source, newest first.
func (c *Client) ListSources(ctx context.Context) ([]*domain.Source, error) {
	var sources []*domain.Source
	if err := c.call(ctx, http.MethodGet, "/admin/sources", nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// CreateSource registers a source.
func (c *Client) CreateSource(ctx context.Context, in domain.SourceInput) (*domain.Source, error) {
	var source domain.Source
	if err := c.call(ctx, http.MethodPost, "/admin/sources", in, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// DeleteSource removes a source.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/admin/sources/"+url.PathEscape(id), nil, nil)
}

// Queue lists pending entries.
func (c *Client) Queue(ctx context.Context) ([]*domain.Postmortem, error) {
	var entries []*domain.Postmortem
	if err := c.call(ctx, http.MethodGet, "/admin/queue", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// PublishedLimit is the page size used when listing published entries.
const PublishedLimit = 100

// Published returns the newest published entries, up to PublishedLimit.
func (c *Client) Published(ctx context.Context) ([]*domain.Postmortem, error) {
	var page domain.PostmortemPage
	path := "/postmortems?limit=" + strconv.Itoa(PublishedLimit)
	if err := c.call(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Publish moves an entry to published.
func (c *Client) Publish(ctx context.Context, id string) (*domain.Postmortem, error) {
	return c.transition(ctx, id, "publish")
}

// Reject moves an entry to rejected.
func (c *Client) Reject(ctx context.Context, id string) (*domain.Postmortem, error) {
	return c.transition(ctx, id, "reject")
}

func (c *Client) transition(ctx context.Context, id, action string) (*domain.Postmortem, error) {
	var p domain.Postmortem
	if err := c.call(ctx, http.MethodPatch, "/admin/"+url.PathEscape(id)+"/"+action, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePostmortem removes an entry whatever its status.
func (c *Client) DeletePostmortem(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/admin/"+url.PathEscape(id), nil, nil)
}

// BulkPublish publishes each id independently.
func (c *Client) BulkPublish(ctx context.Context, ids []string) (*domain.BulkResult, error) {
	return c.bulk(ctx, "/admin/bulk-publish", ids)
}

// BulkReject rejects each id independently.
func (c *Client) BulkReject(ctx context.Context, ids []string) (*domain.BulkResult, error) {
	return c.bulk(ctx, "/admin/bulk-reject", ids)
}

func (c *Client) bulk(ctx context.Context, path string, ids []string) (*domain.BulkResult, error) {
	var result domain.BulkResult
	if err := c.call(ctx, http.MethodPost, path, domain.BulkRequest{IDs: ids}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenSyncStream starts a sync of the source and returns the raw event
// stream. The caller must close it. Cancelling ctx aborts the read side
// only; the job itself keeps running on the API.
func (c *Client) OpenSyncStream(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.streamClient, http.MethodPost, "/admin/sources/"+url.PathEscape(id)+"/sync", nil, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp.Body, nil
}

// Ping checks that the API answers its readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/ready", nil, nil)
}

// call sends a JSON request and decodes a JSON answer into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, c.httpClient, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Message: "decode response", Err: err}
	}
	return nil
}

// send performs one request through the breaker. 5xx answers are returned
// as errors so that the breaker counts them; other statuses are left to the
// caller.
func (c *Client) send(ctx context.Context, client *http.Client, method, path string, body io.Reader, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(AdminSecretHeader, c.secret)
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &domain.UpstreamError{Err: err}
		}
		if resp.StatusCode >= 500 {
			defer resp.Body.Close()
			return nil, readError(resp)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("request rejected by circuit breaker", "method", method, "path", path)
			return nil, &domain.UpstreamError{Message: "circuit breaker open", Err: err}
		}
		return nil, err
	}
	return resp, nil
}

// readError turns a non-2xx answer into an UpstreamError carrying the
// status and the server's {"error": ...} message when there is one.
func readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &domain.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}

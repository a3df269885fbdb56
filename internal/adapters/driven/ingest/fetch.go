package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Songmu/retry"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// MaxBodyBytes caps how much of a response body an ingester reads.
const MaxBodyBytes = 10 << 20

// DefaultUserAgent identifies ingestion traffic to upstream sites.
const DefaultUserAgent = "continuum-ingest/1.0 (+https://github.com/custodia-labs/continuum)"

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	Attempts  uint
	Interval  time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Fetcher performs GET requests with bounded retries. Network errors and
// 5xx answers are retried; other non-2xx answers fail at once.
type Fetcher struct {
	client    *http.Client
	attempts  uint
	interval  time.Duration
	userAgent string
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher, filling unset fields with defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		attempts:  cfg.Attempts,
		interval:  cfg.Interval,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
	}
}

// Get fetches url and returns the body. Failures are *domain.UpstreamError.
func (f *Fetcher) Get(ctx context.Context, url string, accept string) ([]byte, error) {
	var body []byte
	var permanent error

	err := retry.Retry(f.attempts, f.interval, func() error {
		if err := ctx.Err(); err != nil {
			permanent = err
			return nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			permanent = fmt.Errorf("create request: %w", err)
			return nil
		}
		req.Header.Set("User-Agent", f.userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn("fetch failed", "url", url, "error", err)
			return &domain.UpstreamError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			f.logger.Warn("fetch got server error", "url", url, "status", resp.StatusCode)
			return &domain.UpstreamError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			permanent = &domain.UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
			return nil
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
		if err != nil {
			return &domain.UpstreamError{Err: err}
		}
		return nil
	})
	if permanent != nil {
		return nil, permanent
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:     srv.URL,
		AdminSecret: "s3cret",
		Timeout:     5 * time.Second,
		BreakerName: t.Name(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "://bad"} {
		if _, err := New(Config{BaseURL: raw}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("New(%q) error = %v, want ErrValidation", raw, err)
		}
	}
}

func TestClient_SendsAdminSecret(t *testing.T) {
	var gotSecret, gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(AdminSecretHeader)
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = w.Write([]byte(`[{"id":"s1","company":"Acme","slug":"acme","method":"rss","active":true}]`))
	}))

	sources, err := c.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	if gotSecret != "s3cret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if gotMethod != http.MethodGet || gotPath != "/admin/sources" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if len(sources) != 1 || sources[0].Slug != "acme" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestClient_CreateSource(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("request = %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var in domain.SourceInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Source{ID: "new", Company: in.Company, Slug: in.Slug, Method: in.Method, Config: in.Config})
	}))

	got, err := c.CreateSource(context.Background(), domain.SourceInput{
		Company: "Acme",
		Slug:    "acme",
		Method:  domain.MethodRSS,
		Config:  map[string]string{"feed_url": "https://acme.test/feed"},
	})
	if err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
	if got.ID != "new" || got.Config["feed_url"] != "https://acme.test/feed" {
		t.Errorf("source = %+v", got)
	}
}

func TestClient_ModerationRoutes(t *testing.T) {
	var calls []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case strings.HasPrefix(r.URL.Path, "/admin/bulk-"):
			var req domain.BulkRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(domain.BulkResult{Succeeded: len(req.IDs)})
		case r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`{"deleted":"x"}`))
		case r.URL.Path == "/admin/queue":
			_, _ = w.Write([]byte(`[]`))
		default:
			_, _ = w.Write([]byte(`{"id":"p1","status":"published"}`))
		}
	}))
	ctx := context.Background()

	if _, err := c.Queue(ctx); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if p, err := c.Publish(ctx, "p1"); err != nil || p.ID != "p1" {
		t.Fatalf("Publish() = %+v, %v", p, err)
	}
	if _, err := c.Reject(ctx, "p2"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if err := c.DeletePostmortem(ctx, "p3"); err != nil {
		t.Fatalf("DeletePostmortem() error = %v", err)
	}
	if err := c.DeleteSource(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSource() error = %v", err)
	}
	res, err := c.BulkPublish(ctx, []string{"a", "b"})
	if err != nil || res.Succeeded != 2 {
		t.Fatalf("BulkPublish() = %+v, %v", res, err)
	}
	if _, err := c.BulkReject(ctx, []string{"c"}); err != nil {
		t.Fatalf("BulkReject() error = %v", err)
	}

	want := []string{
		"GET /admin/queue",
		"PATCH /admin/p1/publish",
		"PATCH /admin/p2/reject",
		"DELETE /admin/p3",
		"DELETE /admin/sources/s1",
		"POST /admin/bulk-publish",
		"POST /admin/bulk-reject",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls = %v\nwant %v", calls, want)
	}
}

func TestClient_Published(t *testing.T) {
	var gotPath, gotLimit string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","company":"Acme","status":"published"}],"total":7}`))
	}))

	entries, err := c.Published(context.Background())
	if err != nil {
		t.Fatalf("Published() error = %v", err)
	}
	if gotPath != "/postmortems" || gotLimit != "100" {
		t.Errorf("request = %s limit=%s", gotPath, gotLimit)
	}
	if len(entries) != 1 || entries[0].ID != "p1" || entries[0].Status != domain.StatusPublished {
		t.Errorf("entries = %+v", entries)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "json error", status: http.StatusNotFound, body: `{"error":"not found"}`, wantMsg: "not found"},
		{name: "conflict", status: http.StatusConflict, body: `{"error":"invalid status transition"}`, wantMsg: "invalid status transition"},
		{name: "plain text", status: http.StatusUnauthorized, body: "nope\n", wantMsg: "nope"},
		{name: "server error", status: http.StatusBadGateway, body: `{"error":"boom"}`, wantMsg: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.Publish(context.Background(), "p1")
			var ue *domain.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("error = %v, want UpstreamError", err)
			}
			if ue.StatusCode != tt.status || ue.Message != tt.wantMsg {
				t.Errorf("UpstreamError = %d %q, want %d %q", ue.StatusCode, ue.Message, tt.status, tt.wantMsg)
			}
			if !errors.Is(err, domain.ErrUpstream) {
				t.Error("expected errors.Is(err, ErrUpstream)")
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: addr, BreakerName: t.Name()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.ListSources(context.Background())
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 0 || ue.Err == nil {
		t.Fatalf("error = %v, want UpstreamError without status", err)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.Queue(ctx); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := c.Queue(ctx)
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Message != "circuit breaker open" {
		t.Fatalf("error = %v, want open breaker", err)
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("server hits = %d, want 5", got)
	}
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 12; i++ {
		_, err := c.Publish(context.Background(), "missing")
		var ue *domain.UpstreamError
		if !errors.As(err, &ue) || ue.StatusCode != http.StatusNotFound {
			t.Fatalf("call %d: error = %v", i, err)
		}
	}
	if got := hits.Load(); got != 12 {
		t.Errorf("server hits = %d, want 12", got)
	}
}

func TestClient_OpenSyncStream(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/sources/src-1/sync" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"type\":\"start\"}\n\n")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "data: {\"type\":\"done\",\"created\":0}\n\n")
	}))

	body, err := c.OpenSyncStream(context.Background(), "src-1")
	if err != nil {
		t.Fatalf("OpenSyncStream() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	want := "data: {\"type\":\"start\"}\n\ndata: {\"type\":\"done\",\"created\":0}\n\n"
	if string(data) != want {
		t.Errorf("stream = %q, want %q", data, want)
	}
}

func TestClient_OpenSyncStreamNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"source not found"}`))
	}))

	_, err := c.OpenSyncStream(context.Background(), "nope")
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want 404 UpstreamError", err)
	}
}

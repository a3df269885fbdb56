package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven/mocks"
)

type syncFixture struct {
	runner      *SyncRunner
	sources     *mocks.MockSourceStore
	postmortems *mocks.MockPostmortemStore
	lock        *mocks.MockDistributedLock
	ingester    *mocks.MockIngester
	source      *domain.Source
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	sources := mocks.NewMockSourceStore()
	postmortems := mocks.NewMockPostmortemStore()
	lock := mocks.NewMockDistributedLock()
	ingester := &mocks.MockIngester{M: domain.MethodGitHubJSON}

	source := &domain.Source{
		ID:      "src-1",
		Company: "Acme",
		Slug:    "acme",
		Method:  domain.MethodGitHubJSON,
		Config:  map[string]string{"repo": "acme/status", "branch": "main", "file": "incidents.json"},
		Active:  true,
	}
	require.NoError(t, sources.Save(context.Background(), source))

	runner := NewSyncRunner(SyncRunnerConfig{
		SourceStore:     sources,
		PostmortemStore: postmortems,
		Ingesters:       mocks.NewMockIngesterRegistry(ingester),
		Lock:            lock,
	})

	return &syncFixture{
		runner:      runner,
		sources:     sources,
		postmortems: postmortems,
		lock:        lock,
		ingester:    ingester,
		source:      source,
	}
}

func collect(events *[]domain.SyncEvent) func(domain.SyncEvent) {
	return func(ev domain.SyncEvent) { *events = append(*events, ev) }
}

func eventTypes(events []domain.SyncEvent) []domain.SyncEventType {
	types := make([]domain.SyncEventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestSyncRunner_Run_Success(t *testing.T) {
	f := newSyncFixture(t)
	f.ingester.Progress = []domain.SyncEvent{
		domain.CommitsPageEvent(30),
		domain.CommitsPageEvent(42),
		domain.CommitsDoneEvent(42, 2, "Found 42 commits"),
		domain.FetchingEvent(1, 2),
		domain.FetchingEvent(2, 2),
	}
	f.ingester.Entries = []*domain.Postmortem{
		{ID: "acme-1", Title: "DNS outage", URL: "https://acme.com/1"},
		{ID: "acme-2", Title: "Database failover", URL: "https://acme.com/2"},
	}

	var events []domain.SyncEvent
	result, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []domain.SyncEventType{
		domain.SyncEventStart,
		domain.SyncEventCommitsPage, domain.SyncEventCommitsPage, domain.SyncEventCommitsDone,
		domain.SyncEventFetching, domain.SyncEventFetching,
		domain.SyncEventIncident, domain.SyncEventIncident,
		domain.SyncEventDone,
	}, eventTypes(events))

	last := events[len(events)-1]
	require.NotNil(t, last.Created)
	assert.Equal(t, 2, *last.Created)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Created)

	stored, err := f.postmortems.Get(context.Background(), "acme-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, "Acme", stored.Company)
	assert.Equal(t, "src-1", stored.SourceID)

	source, _ := f.sources.Get(context.Background(), f.source.ID)
	assert.NotNil(t, source.LastSyncedAt, "last_synced_at should be set on success")
	assert.False(t, f.lock.IsHeld("sync:src-1"), "lock should be released")
}

func TestSyncRunner_Run_SkipsKnownEntries(t *testing.T) {
	f := newSyncFixture(t)
	require.NoError(t, f.postmortems.Insert(context.Background(), &domain.Postmortem{
		ID: "acme-1", Title: "DNS outage", Status: domain.StatusPublished,
	}))
	f.ingester.Entries = []*domain.Postmortem{
		{ID: "acme-1", Title: "DNS outage"},
		{ID: "acme-2", Title: "Database failover"},
	}

	var events []domain.SyncEvent
	result, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "Database failover", events[1].Title)

	existing, _ := f.postmortems.Get(context.Background(), "acme-1")
	assert.Equal(t, domain.StatusPublished, existing.Status, "a known entry must keep its status")
}

func TestSyncRunner_Run_IngesterFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.ingester.Progress = []domain.SyncEvent{domain.CommitsPageEvent(10)}
	f.ingester.Err = errors.New("GitHub API error 502")

	var events []domain.SyncEvent
	result, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []domain.SyncEventType{
		domain.SyncEventStart, domain.SyncEventCommitsPage, domain.SyncEventError,
	}, eventTypes(events))
	assert.Contains(t, events[2].Message, "GitHub API error 502")
	assert.False(t, result.Success)

	source, _ := f.sources.Get(context.Background(), f.source.ID)
	assert.Nil(t, source.LastSyncedAt, "last_synced_at must not move on failure")
	assert.False(t, f.lock.IsHeld("sync:src-1"))
}

func TestSyncRunner_Run_StoreFailureStopsJob(t *testing.T) {
	f := newSyncFixture(t)
	f.ingester.Entries = []*domain.Postmortem{
		{ID: "acme-1", Title: "one"},
		{ID: "acme-2", Title: "two"},
	}
	f.postmortems.InsertFn = func(p *domain.Postmortem) error {
		if p.ID == "acme-2" {
			return errors.New("connection reset")
		}
		return nil
	}

	var events []domain.SyncEvent
	_, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []domain.SyncEventType{
		domain.SyncEventStart, domain.SyncEventIncident, domain.SyncEventError,
	}, eventTypes(events))
	terminal := 0
	for _, ev := range events {
		if ev.Type.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal, "exactly one terminal event")
}

func TestSyncRunner_Run_LockHeld(t *testing.T) {
	f := newSyncFixture(t)
	f.lock.SetLockHeld("sync:src-1", time.Minute)
	f.ingester.Entries = []*domain.Postmortem{{ID: "acme-1", Title: "one"}}

	var events []domain.SyncEvent
	result, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, domain.SyncEventError, events[0].Type)
	assert.Equal(t, domain.ErrSyncInProgress.Error(), events[0].Message)
	assert.Equal(t, 0, f.postmortems.Count())
	assert.False(t, result.Success)
	assert.Empty(t, f.lock.Released(), "a lock we did not take must not be released")
}

func TestSyncRunner_Run_UnknownSource(t *testing.T) {
	f := newSyncFixture(t)

	var events []domain.SyncEvent
	_, err := f.runner.Run(context.Background(), "missing", collect(&events))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, events, "no stream output before the source is known")
}

func TestSyncRunner_Run_UnsupportedMethod(t *testing.T) {
	f := newSyncFixture(t)
	rss := &domain.Source{ID: "src-rss", Company: "Example", Slug: "example", Method: domain.MethodRSS}
	require.NoError(t, f.sources.Save(context.Background(), rss))

	var events []domain.SyncEvent
	_, err := f.runner.Run(context.Background(), rss.ID, collect(&events))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, domain.SyncEventError, events[1].Type)
	assert.Contains(t, events[1].Message, "unsupported ingestion method")
}

func TestSyncRunner_Run_DropsForeignIngesterEvents(t *testing.T) {
	f := newSyncFixture(t)
	f.ingester.Progress = []domain.SyncEvent{
		domain.DoneEvent(99),
		domain.FetchingEvent(1, 1),
	}

	var events []domain.SyncEvent
	_, err := f.runner.Run(context.Background(), f.source.ID, collect(&events))
	require.NoError(t, err)

	assert.Equal(t, []domain.SyncEventType{
		domain.SyncEventStart, domain.SyncEventFetching, domain.SyncEventDone,
	}, eventTypes(events))
	assert.Equal(t, 0, *events[2].Created)
}

func TestSyncCutoff(t *testing.T) {
	synced := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	cutoff := syncCutoff(&domain.Source{LastSyncedAt: &synced, Config: map[string]string{"since_date": "2020-01-01T00:00:00Z"}})
	require.NotNil(t, cutoff)
	assert.True(t, cutoff.Equal(synced), "last sync wins over since_date")

	cutoff = syncCutoff(&domain.Source{Config: map[string]string{"since_date": "2020-01-01T00:00:00Z"}})
	require.NotNil(t, cutoff)
	assert.Equal(t, 2020, cutoff.Year())

	assert.Nil(t, syncCutoff(&domain.Source{Config: map[string]string{}}))
}

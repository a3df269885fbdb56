package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
)

// recordingRunner remembers which sources were synced
type recordingRunner struct {
	mu     sync.Mutex
	ran    []string
	events []domain.SyncEvent
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, sourceID string, emit driving.EmitFunc) (*domain.SyncResult, error) {
	r.mu.Lock()
	r.ran = append(r.ran, sourceID)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, ev := range r.events {
		emit(ev)
	}
	return &domain.SyncResult{SourceID: sourceID, Success: true}, nil
}

func (r *recordingRunner) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func TestScheduler_SyncDue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	sources := mocks.NewMockSourceStore()
	for _, s := range []*domain.Source{
		{ID: "never", Slug: "never", Active: true},
		{ID: "stale", Slug: "stale", Active: true, LastSyncedAt: &stale},
		{ID: "recent", Slug: "recent", Active: true, LastSyncedAt: &recent},
		{ID: "inactive", Slug: "inactive", Active: false},
	} {
		require.NoError(t, sources.Save(context.Background(), s))
	}

	runner := &recordingRunner{events: []domain.SyncEvent{domain.DoneEvent(0)}}
	s := NewScheduler(SchedulerConfig{Sources: sources, Runner: runner, Interval: time.Hour})
	s.now = func() time.Time { return now }

	started := s.SyncDue(context.Background())

	assert.Equal(t, 2, started)
	assert.ElementsMatch(t, []string{"never", "stale"}, runner.Ran())
}

func TestScheduler_SyncDue_RunnerErrorsDoNotStopRound(t *testing.T) {
	sources := mocks.NewMockSourceStore()
	require.NoError(t, sources.Save(context.Background(), &domain.Source{ID: "a", Slug: "a", Active: true}))
	require.NoError(t, sources.Save(context.Background(), &domain.Source{ID: "b", Slug: "b", Active: true}))

	runner := &recordingRunner{err: errors.New("boom")}
	s := NewScheduler(SchedulerConfig{Sources: sources, Runner: runner, Interval: time.Hour})

	assert.Equal(t, 2, s.SyncDue(context.Background()))
	assert.Len(t, runner.Ran(), 2)
}

func TestScheduler_SyncDue_StopsWhenCancelled(t *testing.T) {
	sources := mocks.NewMockSourceStore()
	require.NoError(t, sources.Save(context.Background(), &domain.Source{ID: "a", Slug: "a", Active: true}))

	runner := &recordingRunner{}
	s := NewScheduler(SchedulerConfig{Sources: sources, Runner: runner, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, s.SyncDue(ctx))
	assert.Empty(t, runner.Ran())
}

func TestScheduler_StartStop(t *testing.T) {
	sources := mocks.NewMockSourceStore()
	require.NoError(t, sources.Save(context.Background(), &domain.Source{ID: "a", Slug: "a", Active: true}))

	runner := &recordingRunner{}
	s := NewScheduler(SchedulerConfig{
		Sources:      sources,
		Runner:       runner,
		Interval:     time.Hour,
		PollInterval: 10 * time.Millisecond,
	})

	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return len(runner.Ran()) >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestScheduler_DisabledWithoutInterval(t *testing.T) {
	sources := mocks.NewMockSourceStore()
	require.NoError(t, sources.Save(context.Background(), &domain.Source{ID: "a", Slug: "a", Active: true}))

	runner := &recordingRunner{}
	s := NewScheduler(SchedulerConfig{Sources: sources, Runner: runner, PollInterval: time.Millisecond})

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Empty(t, runner.Ran())
}

package syncprogress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

func run(events ...domain.SyncEvent) State {
	s := Begin()
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}

func TestReduce_Events(t *testing.T) {
	tests := []struct {
		name      string
		events    []domain.SyncEvent
		wantPhase Phase
		wantLog   []string
		wantStats Stats
	}{
		{
			name:      "start with message",
			events:    []domain.SyncEvent{domain.StartEvent("Syncing acme")},
			wantPhase: PhaseRunning,
			wantLog:   []string{"Syncing acme"},
		},
		{
			name:      "start without message",
			events:    []domain.SyncEvent{{Type: domain.SyncEventStart}},
			wantPhase: PhaseRunning,
			wantLog:   []string{"Starting..."},
		},
		{
			name:      "commits page replaces count",
			events:    []domain.SyncEvent{domain.CommitsPageEvent(30), domain.CommitsPageEvent(60)},
			wantPhase: PhaseRunning,
			wantLog:   []string{},
			wantStats: Stats{Commits: 60},
		},
		{
			name:      "commits done default message",
			events:    []domain.SyncEvent{domain.CommitsDoneEvent(42, 10, "")},
			wantPhase: PhaseRunning,
			wantLog:   []string{"Found 42 commits"},
			wantStats: Stats{Commits: 42, Sampling: 10},
		},
		{
			name:      "fetching",
			events:    []domain.SyncEvent{domain.FetchingEvent(3, 10)},
			wantPhase: PhaseRunning,
			wantLog:   []string{},
			wantStats: Stats{Fetched: 3, Sampling: 10},
		},
		{
			name:      "absent numbers keep previous values",
			events:    []domain.SyncEvent{domain.CommitsDoneEvent(42, 10, "x"), {Type: domain.SyncEventFetching}},
			wantPhase: PhaseRunning,
			wantLog:   []string{"x"},
			wantStats: Stats{Commits: 42, Sampling: 10},
		},
		{
			name: "incidents count up",
			events: []domain.SyncEvent{
				{Type: domain.SyncEventIncident, Title: "DNS outage"},
				{Type: domain.SyncEventIncident, Title: "Disk full"},
			},
			wantPhase: PhaseRunning,
			wantLog:   []string{"+ DNS outage", "+ Disk full"},
			wantStats: Stats{Created: 2},
		},
		{
			name: "done overrides created",
			events: []domain.SyncEvent{
				{Type: domain.SyncEventIncident, Title: "a"},
				domain.DoneEvent(5),
			},
			wantPhase: PhaseDone,
			wantLog:   []string{"+ a", "Done: 5 new entries"},
			wantStats: Stats{Created: 5},
		},
		{
			name: "done without created keeps count",
			events: []domain.SyncEvent{
				{Type: domain.SyncEventIncident, Title: "a"},
				{Type: domain.SyncEventDone},
			},
			wantPhase: PhaseDone,
			wantLog:   []string{"+ a", "Done: 1 new entries"},
			wantStats: Stats{Created: 1},
		},
		{
			name:      "error",
			events:    []domain.SyncEvent{domain.ErrorEvent("rate limited")},
			wantPhase: PhaseError,
			wantLog:   []string{"Error: rate limited"},
		},
		{
			name:      "unknown type ignored",
			events:    []domain.SyncEvent{{Type: "progress", Message: "hi"}},
			wantPhase: PhaseRunning,
			wantLog:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := run(tt.events...)
			assert.Equal(t, tt.wantPhase, s.Phase)
			assert.Equal(t, tt.wantLog, s.Log)
			assert.Equal(t, tt.wantStats, s.Stats)
		})
	}
}

func TestReduce_TerminalLatch(t *testing.T) {
	s := run(
		domain.StartEvent("go"),
		domain.ErrorEvent("x"),
		domain.SyncEvent{Type: domain.SyncEventIncident, Title: "Y"},
		domain.DoneEvent(9),
	)
	assert.Equal(t, PhaseError, s.Phase)
	assert.Len(t, s.Log, 2)
	assert.Equal(t, 0, s.Stats.Created)

	s = run(domain.DoneEvent(1), domain.SyncEvent{Type: domain.SyncEventIncident, Title: "late"})
	assert.Equal(t, PhaseDone, s.Phase)
	assert.Equal(t, 1, s.Stats.Created, "events after done are ignored")
}

func TestReduce_IdleIgnoresEvents(t *testing.T) {
	s := Reduce(Idle(), domain.StartEvent("go"))
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.Log)
}

func TestReduce_IsPure(t *testing.T) {
	before := run(domain.StartEvent("go"))
	snapshot := before.Clone()

	_ = Reduce(before, domain.SyncEvent{Type: domain.SyncEventIncident, Title: "x"})
	_ = Reduce(before, domain.ErrorEvent("y"))

	assert.Equal(t, snapshot, before)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  int
	}{
		{"no sample yet", Stats{Fetched: 5}, 0},
		{"zero fetched", Stats{Sampling: 20}, 0},
		{"rounds", Stats{Fetched: 1, Sampling: 3}, 33},
		{"rounds up", Stats{Fetched: 2, Sampling: 3}, 67},
		{"complete", Stats{Fetched: 20, Sampling: 20}, 100},
		{"capped", Stats{Fetched: 25, Sampling: 20}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, State{Stats: tt.stats}.Percent())
		})
	}
}

func TestFail(t *testing.T) {
	s := Fail(run(domain.StartEvent("go")), "Connection error: EOF")
	assert.Equal(t, PhaseError, s.Phase)
	assert.Equal(t, []string{"go", "Connection error: EOF"}, s.Log)

	done := run(domain.DoneEvent(0))
	assert.Equal(t, done, Fail(done, "late"))
}

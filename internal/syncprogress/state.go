// Package syncprogress turns a sync progress stream into a live progress
// model: a phase, a human-readable log and running counters.
//
// The model is only ever changed by Reduce, a pure function of the previous
// state and one event. Tracker owns one model, opens one stream per Run and
// feeds its events through Reduce in order.
package syncprogress

import (
	"fmt"
	"math"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// Phase is the lifecycle position of a sync as seen by the client
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseError   Phase = "error"
)

// Terminal reports whether p ends a run
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// Stats are the running counters of a sync
type Stats struct {
	Commits  int `json:"commits"`
	Sampling int `json:"sampling"`
	Fetched  int `json:"fetched"`
	Created  int `json:"created"`
}

// State is the progress model of one sync run
type State struct {
	Phase Phase    `json:"phase"`
	Log   []string `json:"log"`
	Stats Stats    `json:"stats"`
}

// Idle returns the state before any run
func Idle() State {
	return State{Phase: PhaseIdle, Log: []string{}}
}

// Begin returns the state at the start of a run: running, empty log, zero counters
func Begin() State {
	return State{Phase: PhaseRunning, Log: []string{}}
}

// Percent is the fetch progress as a whole percentage. It stays 0 until the
// sample size is known.
func (s State) Percent() int {
	if s.Stats.Sampling <= 0 {
		return 0
	}
	p := int(math.Round(float64(s.Stats.Fetched) / float64(s.Stats.Sampling) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Clone returns a copy of s that shares no memory with it
func (s State) Clone() State {
	s.Log = append([]string(nil), s.Log...)
	if s.Log == nil {
		s.Log = []string{}
	}
	return s
}

// Reduce applies one event to s and returns the new state. s is not
// modified. Events only have an effect while the run is in progress, so a
// terminal state absorbs everything that follows.
func Reduce(s State, ev domain.SyncEvent) State {
	if s.Phase != PhaseRunning {
		return s
	}
	next := s.Clone()

	switch ev.Type {
	case domain.SyncEventStart:
		next.Log = append(next.Log, orDefault(ev.Message, "Starting..."))

	case domain.SyncEventCommitsPage:
		setIf(&next.Stats.Commits, ev.Total)

	case domain.SyncEventCommitsDone:
		setIf(&next.Stats.Commits, ev.Total)
		setIf(&next.Stats.Sampling, ev.Sampling)
		next.Log = append(next.Log, orDefault(ev.Message, fmt.Sprintf("Found %d commits", next.Stats.Commits)))

	case domain.SyncEventFetching:
		setIf(&next.Stats.Fetched, ev.Done)
		setIf(&next.Stats.Sampling, ev.Total)

	case domain.SyncEventIncident:
		next.Stats.Created++
		next.Log = append(next.Log, "+ "+ev.Title)

	case domain.SyncEventDone:
		setIf(&next.Stats.Created, ev.Created)
		next.Log = append(next.Log, fmt.Sprintf("Done: %d new entries", next.Stats.Created))
		next.Phase = PhaseDone

	case domain.SyncEventError:
		next.Log = append(next.Log, "Error: "+orDefault(ev.Message, "unknown error"))
		next.Phase = PhaseError

	default:
		return s
	}

	return next
}

// Fail moves a running state to error with line appended to the log. It is
// used for failures that never arrive as events: a refused request or a
// stream that ends early.
func Fail(s State, line string) State {
	if s.Phase != PhaseRunning {
		return s
	}
	next := s.Clone()
	next.Log = append(next.Log, line)
	next.Phase = PhaseError
	return next
}

func setIf(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package syncprogress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/syncstream"
)

// StreamOpener starts a sync and returns its event stream. A returned
// *domain.UpstreamError with a status code is reported as a refused request.
type StreamOpener func(ctx context.Context) (io.ReadCloser, error)

// Tracker follows the sync of one source. It is safe for concurrent use;
// only one run can be in progress at a time.
type Tracker struct {
	open     StreamOpener
	onChange func(State)
	logger   *slog.Logger

	mu    sync.Mutex
	state State
}

// TrackerConfig holds the dependencies of a Tracker.
type TrackerConfig struct {
	Open StreamOpener
	// OnChange, if set, receives every new state. It is called from the
	// goroutine executing Run, one call at a time.
	OnChange func(State)
	Logger   *slog.Logger
}

// NewTracker creates an idle tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		open:     cfg.Open,
		onChange: cfg.OnChange,
		logger:   logger,
		state:    Idle(),
	}
}

// State returns a snapshot of the current progress model.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Run starts a sync and consumes its stream until a terminal event, the end
// of the stream or ctx cancellation. It returns the final state. Calling Run
// while a run is in progress changes nothing and returns
// domain.ErrSyncInProgress.
func (t *Tracker) Run(ctx context.Context) (State, error) {
	t.mu.Lock()
	if t.state.Phase == PhaseRunning {
		t.mu.Unlock()
		return State{}, domain.ErrSyncInProgress
	}
	t.state = Begin()
	t.mu.Unlock()
	t.notify()

	body, err := t.open(ctx)
	if err != nil {
		t.logger.Warn("sync request failed", "error", err)
		return t.fail(requestFailure(err)), nil
	}
	defer body.Close()

	// Closing the body unblocks a pending read when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	dec := syncstream.NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else if errors.Is(err, io.EOF) {
				err = errors.New("stream ended before completion")
			}
			t.logger.Warn("sync stream interrupted", "error", err, "skipped_frames", dec.Skipped)
			return t.fail("Connection error: " + err.Error()), nil
		}

		if final, done := t.apply(ev); done {
			if dec.Skipped > 0 {
				t.logger.Debug("discarded malformed frames", "count", dec.Skipped)
			}
			return final, nil
		}
	}
}

// apply reduces one event into the tracked state and reports whether the
// run reached a terminal phase.
func (t *Tracker) apply(ev domain.SyncEvent) (State, bool) {
	t.mu.Lock()
	t.state = Reduce(t.state, ev)
	s := t.state.Clone()
	t.mu.Unlock()

	t.notify()
	return s, s.Phase.Terminal()
}

func (t *Tracker) fail(line string) State {
	t.mu.Lock()
	t.state = Fail(t.state, line)
	s := t.state.Clone()
	t.mu.Unlock()

	t.notify()
	return s
}

func (t *Tracker) notify() {
	if t.onChange != nil {
		t.onChange(t.State())
	}
}

func requestFailure(err error) string {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		return fmt.Sprintf("Request failed (%d)", ue.StatusCode)
	}
	return "Connection error: " + err.Error()
}

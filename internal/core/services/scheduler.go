package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
)

// DefaultSchedulerPoll is how often the scheduler looks for due sources.
const DefaultSchedulerPoll = time.Minute

// Scheduler syncs active sources whose last sync is older than the
// configured interval. Runs go through the same SyncRunner as manual syncs,
// so the per-source lock keeps several API instances from syncing one
// source twice.
type Scheduler struct {
	sources  driven.SourceStore
	runner   driving.SyncRunner
	logger   *slog.Logger
	interval time.Duration
	poll     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Sources driven.SourceStore
	Runner  driving.SyncRunner
	Logger  *slog.Logger
	// Interval is the minimum age of the last sync before a source is due.
	Interval time.Duration
	// PollInterval is how often due sources are checked (default: 1m, capped at Interval).
	PollInterval time.Duration
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultSchedulerPoll
	}
	if cfg.Interval > 0 && poll > cfg.Interval {
		poll = cfg.Interval
	}

	return &Scheduler{
		sources:  cfg.Sources,
		runner:   cfg.Runner,
		logger:   logger.With("component", "scheduler"),
		interval: cfg.Interval,
		poll:     poll,
		now:      time.Now,
	}
}

// Start begins the scheduler loop in the background. It is a no-op when
// already running or when no interval is configured.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("scheduler starting", "interval", s.interval, "poll_interval", s.poll)
	go s.run(ctx, s.stopCh, s.doneCh)
}

// Stop ends the loop and waits for an in-flight round to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.SyncDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.SyncDue(ctx)
		}
	}
}

// SyncDue syncs every due source once, one after the other, and returns
// how many runs were started.
func (s *Scheduler) SyncDue(ctx context.Context) int {
	sources, err := s.sources.List(ctx)
	if err != nil {
		s.logger.Error("failed to list sources", "error", err)
		return 0
	}

	started := 0
	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}
		if !s.isDue(source) {
			continue
		}
		started++
		s.syncOne(ctx, source)
	}
	return started
}

func (s *Scheduler) isDue(source *domain.Source) bool {
	if !source.Active {
		return false
	}
	if source.LastSyncedAt == nil {
		return true
	}
	return s.now().Sub(*source.LastSyncedAt) >= s.interval
}

func (s *Scheduler) syncOne(ctx context.Context, source *domain.Source) {
	logger := s.logger.With("source_id", source.ID, "slug", source.Slug)

	var failure string
	result, err := s.runner.Run(ctx, source.ID, func(ev domain.SyncEvent) {
		if ev.Type == domain.SyncEventError {
			failure = ev.Message
		}
	})
	switch {
	case err != nil:
		logger.Warn("scheduled sync could not start", "error", err)
	case failure != "":
		logger.Warn("scheduled sync failed", "error", failure)
	default:
		logger.Info("scheduled sync completed", "created", result.Created, "skipped", result.Skipped)
	}
}

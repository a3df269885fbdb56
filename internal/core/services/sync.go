package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driven"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
	"github.com/custodia-labs/continuum/internal/metrics"
)

// Ensure SyncRunner implements driving.SyncRunner
var _ driving.SyncRunner = (*SyncRunner)(nil)

// DefaultSyncLockTTL bounds how long a crashed runner can block a source
const DefaultSyncLockTTL = 15 * time.Minute

// SyncRunner runs one ingestion job for a source and reports progress.
// The job flow is:
//  1. Load the source
//  2. Take the per-source lock
//  3. Emit start
//  4. Collect candidates through the method's ingester (discovery events pass through)
//  5. Store unseen candidates as pending, emitting one incident event each
//  6. Record last_synced_at and emit done
//
// Any failure after step 2 emits a single error event instead of done.
type SyncRunner struct {
	sourceStore     driven.SourceStore
	postmortemStore driven.PostmortemStore
	ingesters       driven.IngesterRegistry
	lock            driven.DistributedLock
	lockTTL         time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// SyncRunnerConfig holds dependencies for SyncRunner.
type SyncRunnerConfig struct {
	SourceStore     driven.SourceStore
	PostmortemStore driven.PostmortemStore
	Ingesters       driven.IngesterRegistry
	Lock            driven.DistributedLock // optional
	LockTTL         time.Duration
	Logger          *slog.Logger
}

// NewSyncRunner creates a new sync runner.
func NewSyncRunner(cfg SyncRunnerConfig) *SyncRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultSyncLockTTL
	}

	return &SyncRunner{
		sourceStore:     cfg.SourceStore,
		postmortemStore: cfg.PostmortemStore,
		ingesters:       cfg.Ingesters,
		lock:            cfg.Lock,
		lockTTL:         ttl,
		logger:          logger.With("component", "sync"),
		now:             time.Now,
	}
}

// Run syncs a single source. See SyncRunner for the event sequence.
func (r *SyncRunner) Run(ctx context.Context, sourceID string, emit driving.EmitFunc) (*domain.SyncResult, error) {
	startTime := time.Now()

	source, err := r.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("source_id", sourceID, "method", source.Method)
	result := &domain.SyncResult{SourceID: sourceID}

	if r.lock != nil {
		lockName := "sync:" + sourceID
		acquired, err := r.lock.Acquire(ctx, lockName, r.lockTTL)
		if err != nil {
			return r.failSync(logger, source, result, startTime, emit, fmt.Errorf("failed to acquire sync lock: %w", err)), nil
		}
		if !acquired {
			logger.Info("sync skipped, already running")
			metrics.RecordSyncRun(string(source.Method), "locked", 0, time.Since(startTime))
			result.Error = domain.ErrSyncInProgress.Error()
			emit(domain.ErrorEvent(domain.ErrSyncInProgress.Error()))
			return result, nil
		}
		defer func() {
			if err := r.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
				logger.Warn("failed to release sync lock", "error", err)
			}
		}()
	}

	logger.Info("starting sync")
	emit(domain.StartEvent(fmt.Sprintf("Syncing %s via %s", source.Company, source.Method)))

	ingester, err := r.ingesters.Get(source.Method)
	if err != nil {
		return r.failSync(logger, source, result, startTime, emit, err), nil
	}

	candidates, err := ingester.Collect(ctx, source, syncCutoff(source), func(ev domain.SyncEvent) {
		switch ev.Type {
		case domain.SyncEventCommitsPage, domain.SyncEventCommitsDone, domain.SyncEventFetching:
			emit(ev)
		default:
			logger.Debug("dropping ingester event", "type", ev.Type)
		}
	})
	if err != nil {
		return r.failSync(logger, source, result, startTime, emit, fmt.Errorf("failed to collect entries: %w", err)), nil
	}

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return r.failSync(logger, source, result, startTime, emit, err), nil
		}

		exists, err := r.postmortemStore.Exists(ctx, p.ID)
		if err != nil {
			return r.failSync(logger, source, result, startTime, emit, fmt.Errorf("failed to check entry %s: %w", p.ID, err)), nil
		}
		if exists {
			result.Skipped++
			continue
		}

		r.prepare(source, p)
		if err := r.postmortemStore.Insert(ctx, p); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) && ve.Conflict {
				result.Skipped++
				continue
			}
			return r.failSync(logger, source, result, startTime, emit, fmt.Errorf("failed to store entry %s: %w", p.ID, err)), nil
		}

		result.Created++
		emit(domain.IncidentEvent(p))
	}

	if err := r.sourceStore.MarkSynced(ctx, sourceID, r.now().UTC()); err != nil {
		return r.failSync(logger, source, result, startTime, emit, fmt.Errorf("failed to record sync time: %w", err)), nil
	}

	result.Success = true
	result.Duration = time.Since(startTime).Seconds()

	logger.Info("sync completed",
		"duration_seconds", result.Duration,
		"created", result.Created,
		"skipped", result.Skipped,
	)
	metrics.RecordSyncRun(string(source.Method), "done", result.Created, time.Since(startTime))

	emit(domain.DoneEvent(result.Created))
	return result, nil
}

// prepare fills the fields the runner owns on a new entry.
func (r *SyncRunner) prepare(source *domain.Source, p *domain.Postmortem) {
	p.SourceID = source.ID
	if p.Company == "" {
		p.Company = source.Company
	}
	p.Status = domain.StatusPending
	p.CreatedAt = r.now().UTC()
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.AffectedServices == nil {
		p.AffectedServices = []string{}
	}
}

// failSync reports a failed sync through emit and the result.
func (r *SyncRunner) failSync(
	logger *slog.Logger,
	source *domain.Source,
	result *domain.SyncResult,
	startTime time.Time,
	emit driving.EmitFunc,
	err error,
) *domain.SyncResult {
	duration := time.Since(startTime)
	logger.Error("sync failed", "error", err, "created", result.Created, "duration_seconds", duration.Seconds())
	metrics.RecordSyncRun(string(source.Method), "error", result.Created, duration)

	result.Success = false
	result.Error = err.Error()
	result.Duration = duration.Seconds()
	emit(domain.ErrorEvent(err.Error()))
	return result
}

// syncCutoff picks the lower time bound for collection: the last successful
// sync, else the configured since_date, else nothing.
func syncCutoff(source *domain.Source) *time.Time {
	if source.LastSyncedAt != nil {
		t := *source.LastSyncedAt
		return &t
	}
	if raw := source.Config["since_date"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t
		}
	}
	return nil
}

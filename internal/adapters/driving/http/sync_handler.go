package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/metrics"
	"github.com/custodia-labs/continuum/internal/syncstream"
)

// syncEventBuffer absorbs bursts while the client reads slowly
const syncEventBuffer = 64

// handleSyncSource godoc
// @Summary      Sync a source
// @Description  Runs one ingestion job and streams its progress as text/event-stream
// @Description  frames of the form "data: <json>". The stream ends with a done or
// @Description  error event. The job keeps running if the client disconnects.
// @Tags         Sources
// @Produce      text/event-stream
// @Security     AdminSecret
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  domain.SyncEvent
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/sources/{id}/sync [post]
func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sourceService.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.DebugContext(r.Context(), "cannot clear write deadline", "error", err)
	}

	syncstream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	enc := syncstream.NewEncoder(w)

	metrics.SyncStreamsActive.Inc()
	defer metrics.SyncStreamsActive.Dec()

	events := make(chan domain.SyncEvent, syncEventBuffer)
	gone := make(chan struct{})
	defer close(gone)

	// After the client leaves, events are dropped instead of blocking the job.
	emit := func(ev domain.SyncEvent) {
		select {
		case events <- ev:
		case <-gone:
		}
	}

	logger := s.logger.With("source_id", id)
	jobCtx := context.WithoutCancel(r.Context())
	go func() {
		defer close(events)
		if _, err := s.syncRunner.Run(jobCtx, id, emit); err != nil {
			logger.Warn("sync could not start", "error", err)
			emit(domain.ErrorEvent(err.Error()))
		}
	}()

	// The stream ends when the job returns, so its lock is released before
	// the client sees the end of the response.
	finished := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if finished {
				continue
			}
			if err := enc.Encode(ev); err != nil {
				logger.InfoContext(r.Context(), "sync stream write failed", "error", err)
				return
			}
			finished = ev.Type.IsTerminal()
		case <-r.Context().Done():
			logger.InfoContext(r.Context(), "sync client disconnected, job continues")
			return
		}
	}
}

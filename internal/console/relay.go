package console

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/metrics"
	"github.com/custodia-labs/continuum/internal/syncstream"
)

const relayBufferSize = 32 * 1024

// Relay outcomes, as recorded in metrics
const (
	outcomeCompleted     = "completed"
	outcomeUpstreamError = "upstream_error"
	outcomeClientGone    = "client_gone"
	outcomeUnauthorized  = "unauthorized"
)

// handleSyncRelay starts a sync on the API and forwards its event stream
// byte for byte. When the API cannot be reached or refuses the request the
// client gets a normal event stream holding a single error event.
func (s *Server) handleSyncRelay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logger := s.logger.With("source_id", id)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.DebugContext(r.Context(), "cannot clear write deadline", "error", err)
	}

	body, err := s.api.OpenSyncStream(r.Context(), id)
	syncstream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	if err != nil {
		logger.WarnContext(r.Context(), "sync upstream failed", "error", err)
		if encErr := syncstream.NewEncoder(w).Encode(domain.ErrorEvent(upstreamMessage(err))); encErr != nil {
			logger.DebugContext(r.Context(), "could not report upstream failure", "error", encErr)
		}
		metrics.RecordRelayStream(outcomeUpstreamError, 0)
		return
	}
	defer body.Close()

	n, err := copyFlush(w, body, rc)
	switch {
	case r.Context().Err() != nil:
		logger.InfoContext(r.Context(), "sync relay client disconnected", "bytes", n)
		metrics.RecordRelayStream(outcomeClientGone, n)
	case err != nil:
		logger.WarnContext(r.Context(), "sync relay interrupted", "error", err, "bytes", n)
		metrics.RecordRelayStream(outcomeUpstreamError, n)
	default:
		metrics.RecordRelayStream(outcomeCompleted, n)
	}
}

// copyFlush copies src to w, flushing after every chunk.
func copyFlush(w io.Writer, src io.Reader, rc *http.ResponseController) (int64, error) {
	buf := make([]byte, relayBufferSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, err
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func upstreamMessage(err error) string {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		return "Upstream unreachable: " + err.Error()
	}
	switch {
	case ue.StatusCode != 0 && ue.Message != "":
		return fmt.Sprintf("Upstream error %d: %s", ue.StatusCode, ue.Message)
	case ue.StatusCode != 0:
		return fmt.Sprintf("Upstream error %d", ue.StatusCode)
	case ue.Err != nil:
		return "Upstream unreachable: " + ue.Err.Error()
	default:
		return "Upstream unreachable: " + ue.Error()
	}
}

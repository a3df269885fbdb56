package syncstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// ContentType is the media type of a sync progress stream
const ContentType = "text/event-stream"

// FramePrefix starts every significant line
const FramePrefix = "data: "

// SetHeaders marks a response as an unbuffered event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Encoder writes events as frames, flushing after each one when the
// underlying writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder creates an Encoder on w.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes one frame.
func (e *Encoder) Encode(ev domain.SyncEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal sync event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", FramePrefix, payload); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

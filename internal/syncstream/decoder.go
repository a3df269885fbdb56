package syncstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// Decoder reads events from a frame stream.
type Decoder struct {
	r *bufio.Reader

	// Skipped counts frames that carried the prefix but were discarded.
	Skipped int
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next well-formed event. It returns io.EOF once the
// stream ends; a trailing line without a newline is incomplete and dropped.
// Any other error comes from the underlying reader.
func (d *Decoder) Next() (domain.SyncEvent, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.SyncEvent{}, io.EOF
			}
			return domain.SyncEvent{}, err
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, FramePrefix) {
			continue
		}

		ev, ok := parseFrame(line[len(FramePrefix):])
		if !ok {
			d.Skipped++
			continue
		}
		return ev, nil
	}
}

func parseFrame(payload string) (domain.SyncEvent, bool) {
	var ev domain.SyncEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return domain.SyncEvent{}, false
	}
	if !ev.Type.IsValid() {
		return domain.SyncEvent{}, false
	}
	return ev, true
}

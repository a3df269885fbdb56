package syncstream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

func decodeAll(t *testing.T, r io.Reader) ([]domain.SyncEvent, *Decoder) {
	t.Helper()
	dec := NewDecoder(r)
	var events []domain.SyncEvent
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events, dec
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

const sampleStream = `data: {"type":"start","message":"Syncing acme"}

data: {"type":"commits_page","total":30}

data: {"type":"incident","title":"DNS outage"}

data: {"type":"done","created":1}

`

func TestDecoder_WholeStream(t *testing.T) {
	events, dec := decodeAll(t, strings.NewReader(sampleStream))

	require.Len(t, events, 4)
	assert.Equal(t, domain.SyncEventStart, events[0].Type)
	assert.Equal(t, "Syncing acme", events[0].Message)
	require.NotNil(t, events[1].Total)
	assert.Equal(t, 30, *events[1].Total)
	assert.Equal(t, "DNS outage", events[2].Title)
	require.NotNil(t, events[3].Created)
	assert.Equal(t, 1, *events[3].Created)
	assert.Equal(t, 0, dec.Skipped)
}

func TestDecoder_SplitReads(t *testing.T) {
	whole, _ := decodeAll(t, strings.NewReader(sampleStream))
	split, _ := decodeAll(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	half, _ := decodeAll(t, iotest.HalfReader(strings.NewReader(sampleStream)))

	assert.Equal(t, whole, split, "a frame split across reads decodes the same")
	assert.Equal(t, whole, half)
}

func TestDecoder_SkipsBadFrames(t *testing.T) {
	stream := strings.Join([]string{
		`: keep-alive comment`,
		`event: progress`,
		`data: {"type":"start"}`,
		`data: {not json`,
		`data: {"type":"progress","done":1}`,
		`data: {"type":"commits_done","total":"many"}`,
		`data:{"type":"incident","title":"no space"}`,
		`data: {"type":"incident","title":"kept"}`,
		``,
	}, "\n")

	events, dec := decodeAll(t, strings.NewReader(stream))

	require.Len(t, events, 2)
	assert.Equal(t, domain.SyncEventStart, events[0].Type)
	assert.Equal(t, "kept", events[1].Title)
	assert.Equal(t, 3, dec.Skipped)
}

func TestDecoder_CRLF(t *testing.T) {
	events, _ := decodeAll(t, strings.NewReader("data: {\"type\":\"error\",\"message\":\"boom\"}\r\n\r\n"))
	require.Len(t, events, 1)
	assert.Equal(t, "boom", events[0].Message)
}

func TestDecoder_DropsTrailingPartialLine(t *testing.T) {
	stream := "data: {\"type\":\"start\"}\n\ndata: {\"type\":\"done\",\"created\":2}"
	events, _ := decodeAll(t, strings.NewReader(stream))

	require.Len(t, events, 1)
	assert.Equal(t, domain.SyncEventStart, events[0].Type)
}

func TestDecoder_ReaderError(t *testing.T) {
	boom := errors.New("connection reset")
	dec := NewDecoder(io.MultiReader(strings.NewReader("data: {\"type\":\"start\"}\n"), iotest.ErrReader(boom)))

	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, domain.SyncEventStart, ev.Type)

	_, err = dec.Next()
	assert.ErrorIs(t, err, boom)
}

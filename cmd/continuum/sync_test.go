package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/custodia-labs/continuum/internal/syncprogress"
)

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf}

	p.print(syncprogress.State{Phase: syncprogress.PhaseRunning, Log: []string{"Syncing"}})
	p.print(syncprogress.State{
		Phase: syncprogress.PhaseRunning,
		Log:   []string{"Syncing", "Fetching 1/4"},
		Stats: syncprogress.Stats{Sampling: 4, Fetched: 1},
	})
	// Same percentage again prints no progress line.
	p.print(syncprogress.State{
		Phase: syncprogress.PhaseRunning,
		Log:   []string{"Syncing", "Fetching 1/4"},
		Stats: syncprogress.Stats{Sampling: 4, Fetched: 1},
	})
	// A new run restarts the log.
	p.print(syncprogress.State{Phase: syncprogress.PhaseRunning, Log: []string{"Again"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{"Syncing", "Fetching 1/4", "   25%  1/4 fetched, 0 created", "Again"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

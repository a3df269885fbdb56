package domain

import (
	"encoding/json"
	"testing"
)

func TestSyncEventTypeIsValid(t *testing.T) {
	for _, typ := range []SyncEventType{
		SyncEventStart, SyncEventCommitsPage, SyncEventCommitsDone,
		SyncEventFetching, SyncEventIncident, SyncEventDone, SyncEventError,
	} {
		if !typ.IsValid() {
			t.Errorf("expected %s to be valid", typ)
		}
	}
	if SyncEventType("progress").IsValid() {
		t.Error("expected unknown type to be invalid")
	}
	if !SyncEventDone.IsTerminal() || !SyncEventError.IsTerminal() || SyncEventIncident.IsTerminal() {
		t.Error("only done and error are terminal")
	}
}

func TestSyncEventOmitsAbsentFields(t *testing.T) {
	data, err := json.Marshal(StartEvent("Syncing acme"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"type":"start","message":"Syncing acme"}` {
		t.Errorf("unexpected encoding %s", data)
	}

	data, _ = json.Marshal(DoneEvent(0))
	if string(data) != `{"type":"done","created":0}` {
		t.Errorf("zero created must be encoded, got %s", data)
	}
}

func TestIncidentEvent(t *testing.T) {
	sev := SeverityHigh
	ev := IncidentEvent(&Postmortem{ID: "acme-1", Title: "DNS outage", Severity: &sev})
	if ev.Type != SyncEventIncident || ev.Title != "DNS outage" || ev.ID != "acme-1" || ev.Severity != "high" {
		t.Errorf("unexpected event %+v", ev)
	}
}

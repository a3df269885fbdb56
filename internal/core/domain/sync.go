package domain

// SyncEventType is the discriminator of a sync progress event
type SyncEventType string

const (
	SyncEventStart       SyncEventType = "start"
	SyncEventCommitsPage SyncEventType = "commits_page"
	SyncEventCommitsDone SyncEventType = "commits_done"
	SyncEventFetching    SyncEventType = "fetching"
	SyncEventIncident    SyncEventType = "incident"
	SyncEventDone        SyncEventType = "done"
	SyncEventError       SyncEventType = "error"
)

// IsValid reports whether t belongs to the closed set of event types
func (t SyncEventType) IsValid() bool {
	switch t {
	case SyncEventStart, SyncEventCommitsPage, SyncEventCommitsDone,
		SyncEventFetching, SyncEventIncident, SyncEventDone, SyncEventError:
		return true
	}
	return false
}

// IsTerminal reports whether t ends a sync stream
func (t SyncEventType) IsTerminal() bool {
	return t == SyncEventDone || t == SyncEventError
}

// SyncEvent is one record of a sync progress stream. Numeric fields are
// pointers so that an absent field can be told apart from zero.
type SyncEvent struct {
	Type     SyncEventType `json:"type"`
	Message  string        `json:"message,omitempty"`
	Total    *int          `json:"total,omitempty"`
	Sampling *int          `json:"sampling,omitempty"`
	Done     *int          `json:"done,omitempty"`
	Created  *int          `json:"created,omitempty"`
	Title    string        `json:"title,omitempty"`
	ID       string        `json:"id,omitempty"`
	Severity string        `json:"severity,omitempty"`
}

func intPtr(n int) *int { return &n }

// StartEvent announces that a sync job has begun
func StartEvent(message string) SyncEvent {
	return SyncEvent{Type: SyncEventStart, Message: message}
}

// CommitsPageEvent reports the running count of discovered commits
func CommitsPageEvent(total int) SyncEvent {
	return SyncEvent{Type: SyncEventCommitsPage, Total: intPtr(total)}
}

// CommitsDoneEvent closes discovery with the total and the sample size
func CommitsDoneEvent(total, sampling int, message string) SyncEvent {
	return SyncEvent{Type: SyncEventCommitsDone, Total: intPtr(total), Sampling: intPtr(sampling), Message: message}
}

// FetchingEvent reports how many of total sampled items have been fetched
func FetchingEvent(done, total int) SyncEvent {
	return SyncEvent{Type: SyncEventFetching, Done: intPtr(done), Total: intPtr(total)}
}

// IncidentEvent reports one newly stored entry
func IncidentEvent(p *Postmortem) SyncEvent {
	ev := SyncEvent{Type: SyncEventIncident, Title: p.Title, ID: p.ID}
	if p.Severity != nil {
		ev.Severity = string(*p.Severity)
	}
	return ev
}

// DoneEvent ends a successful sync
func DoneEvent(created int) SyncEvent {
	return SyncEvent{Type: SyncEventDone, Created: intPtr(created)}
}

// ErrorEvent ends a failed sync
func ErrorEvent(message string) SyncEvent {
	return SyncEvent{Type: SyncEventError, Message: message}
}

// SyncResult summarizes a finished sync job
type SyncResult struct {
	SourceID string  `json:"source_id"`
	Success  bool    `json:"success"`
	Created  int     `json:"created"`
	Skipped  int     `json:"skipped"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

package domain

import "time"

// Status is the moderation status of a postmortem entry
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusRejected:
		return true
	}
	return false
}

// Severity grades the impact of an incident
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid reports whether s is a known severity
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ParseSeverity maps free-form severity labels onto the closed set.
// Unknown labels return nil.
func ParseSeverity(label string) *Severity {
	var s Severity
	switch label {
	case "critical", "sev0", "sev1", "p0", "p1":
		s = SeverityCritical
	case "high", "major", "sev2", "p2":
		s = SeverityHigh
	case "medium", "moderate", "minor", "sev3", "p3":
		s = SeverityMedium
	case "low", "none", "sev4", "p4":
		s = SeverityLow
	default:
		return nil
	}
	return &s
}

// Postmortem is a collected incident write-up
type Postmortem struct {
	ID                string     `json:"id"`
	SourceID          string     `json:"source_id,omitempty"`
	Company           string     `json:"company"`
	Title             string     `json:"title"`
	URL               string     `json:"url"`
	PublishedAt       *time.Time `json:"published_at"`
	Severity          *Severity  `json:"severity"`
	AffectedServices  []string   `json:"affected_services"`
	RootCauseCategory *string    `json:"root_cause_category"`
	AISummary         *string    `json:"ai_summary"`
	Tags              []string   `json:"tags"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Transition returns the status an entry moves to when target is requested.
// changed is false when the entry is already in target. Moving out of a
// terminal status into the other terminal status, or back to pending, fails
// with ErrInvalidTransition.
func (p *Postmortem) Transition(target Status) (next Status, changed bool, err error) {
	if p.Status == target {
		return target, false, nil
	}
	if p.Status != StatusPending || target == StatusPending {
		return p.Status, false, ErrInvalidTransition
	}
	return target, true, nil
}

// BulkRequest is the body of the bulk moderation endpoints
type BulkRequest struct {
	IDs []string `json:"ids"`
}

// BulkFailure records why one id of a bulk action failed
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BulkResult tallies a best-effort bulk moderation action
type BulkResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []BulkFailure `json:"failures,omitempty"`
}

// SortField is a column the public listing can be ordered by
type SortField string

const (
	SortByPublishedAt SortField = "published_at"
	SortByCompany     SortField = "company"
	SortByCreatedAt   SortField = "created_at"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PostmortemFilter selects and orders entries for listing
type PostmortemFilter struct {
	Company  string
	Severity Severity
	Status   Status
	SortBy   SortField
	SortDesc bool
	Limit    int
	Offset   int
}

// Normalize applies defaults and bounds. Unknown sort fields fall back to
// published_at, limit is clamped to [1, MaxListLimit].
func (f PostmortemFilter) Normalize() PostmortemFilter {
	switch f.SortBy {
	case SortByPublishedAt, SortByCompany, SortByCreatedAt:
	default:
		f.SortBy = SortByPublishedAt
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status == "" {
		f.Status = StatusPublished
	}
	return f
}

// PostmortemPage is one page of listing results
type PostmortemPage struct {
	Data  []*Postmortem `json:"data"`
	Total int           `json:"total"`
}

// Package audit owns the terminal output of the audit pipeline: the
// immutable LogRecord, the Log Store that persists and queries records, the
// assembler that builds a record from a detection result, and the HTTP
// handlers that expose the log for querying and retention.
package audit

import (
	"encoding/json"
	"time"

	"github.com/keyxmakerx/audittrail/internal/severity"
)

// Authentication actions. Entity actions are named "{kind}_{verb}" by the
// detectors.
const (
	ActionLoginFailed = severity.ActionLoginFailed
	ActionLoggedIn    = severity.ActionLoggedIn
)

// Link is a contextual link shown next to a record (edit, view). URLs are
// supplied by the host and stored verbatim.
type Link struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// LogRecord is one persisted audit entry. Records are created once and never
// modified.
type LogRecord struct {
	ID int64 `json:"id" yaml:"id"`

	// ActorID is the acting user; 0 means system or anonymous.
	ActorID int64  `json:"actorId" yaml:"actor_id"`
	ActorIP string `json:"actorIp,omitempty" yaml:"actor_ip,omitempty"`

	CreatedAt time.Time      `json:"createdAt" yaml:"created_at"`
	Severity  severity.Level `json:"severity" yaml:"severity"`
	Action    string         `json:"action" yaml:"action"`

	ObjectKind  string `json:"objectKind" yaml:"object_kind"`
	ObjectID    string `json:"objectId" yaml:"object_id"`
	ObjectLabel string `json:"objectLabel,omitempty" yaml:"object_label,omitempty"`

	// Details is the serialized change set.
	Details json.RawMessage `json:"details,omitempty" yaml:"-"`

	Links []Link `json:"links,omitempty" yaml:"links,omitempty"`

	// CorrelationID ties together records produced by one request.
	CorrelationID string `json:"correlationId,omitempty" yaml:"correlation_id,omitempty"`
}

// DetailsMap decodes Details for display. Undecodable details read as empty.
func (r *LogRecord) DetailsMap() map[string]any {
	if len(r.Details) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(r.Details, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Actor identifies who caused a mutation.
type Actor struct {
	ID int64
	IP string
}

// Filter narrows a log query. Zero values do not filter.
type Filter struct {
	// Severity matches one level exactly.
	Severity *severity.Level

	// MinSeverity matches records at least this severe.
	MinSeverity *severity.Level

	ActorID    *int64
	Action     string
	ObjectKind string
	ObjectID   string
	DateFrom   time.Time
	DateTo     time.Time

	// Search matches a substring of the label, action or details.
	Search string
}

// Page is one page of query results.
type Page struct {
	Records []LogRecord `json:"records" yaml:"records"`
	Total   int         `json:"total" yaml:"total"`
	Page    int         `json:"page" yaml:"page"`
	PerPage int         `json:"perPage" yaml:"per_page"`
}

package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/severity"
)

func TestAssemble_EmptyChangesSuppressed(t *testing.T) {
	rec, err := Assemble(Event{Action: "post_updated", ObjectKind: "post", Changes: changeset.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for empty update, got %+v", rec)
	}

	rec, err = Assemble(Event{Action: "post_updated", ObjectKind: "post"})
	if err != nil || rec != nil {
		t.Fatalf("nil change set: rec=%+v err=%v", rec, err)
	}
}

func TestAssemble_LifecycleWithoutChanges(t *testing.T) {
	rec, err := Assemble(Event{
		Actor:      Actor{ID: 3, IP: "10.1.1.1"},
		Action:     "post_deleted",
		ObjectKind: "post",
		ObjectID:   "9",
		Severity:   severity.Warning,
		Lifecycle:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("lifecycle event must produce a record")
	}
	if rec.Details != nil {
		t.Errorf("details = %s, want none", rec.Details)
	}
	if rec.ActorID != 3 || rec.ActorIP != "10.1.1.1" || rec.Severity != severity.Warning {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() || rec.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at = %v, want a UTC timestamp", rec.CreatedAt)
	}
}

func TestAssemble_SerializesChanges(t *testing.T) {
	cs := changeset.New()
	cs.Add("post", changeset.Change{Field: "title", Label: "Title", Kind: changeset.Modified, Old: "A", New: "B"})

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	rec, err := Assemble(Event{
		Action:      "post_updated",
		ObjectKind:  "post",
		ObjectID:    "1",
		ObjectLabel: "Hello",
		Changes:     cs,
		Severity:    severity.Notice,
		At:          at,
		Links: []Link{
			{Label: "Edit", URL: "/edit/1"},
			{Label: "View", URL: ""},
		},
		CorrelationID: "abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var details map[string]map[string]map[string]any
	if err := json.Unmarshal(rec.Details, &details); err != nil {
		t.Fatalf("details are not JSON: %v (%s)", err, rec.Details)
	}
	title := details["post"]["title"]
	if title["old"] != "A" || title["new"] != "B" || title["change"] != "modified" {
		t.Errorf("unexpected title change: %v", title)
	}
	if len(rec.Links) != 1 || rec.Links[0].Label != "Edit" {
		t.Errorf("links = %+v, want only the link with a URL", rec.Links)
	}
	if !rec.CreatedAt.Equal(at) || rec.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at = %v, want %v in UTC", rec.CreatedAt, at)
	}
	if rec.CorrelationID != "abc" {
		t.Errorf("correlation id = %q", rec.CorrelationID)
	}
}

func TestParseFilter(t *testing.T) {
	params := map[string]string{
		"severity":     "Warning",
		"min_severity": "error",
		"actor_id":     "12",
		"action":       " post_updated ",
		"object_kind":  "post",
		"date_from":    "2026-01-01",
		"date_to":      "2026-01-31",
		"search":       "hello",
	}
	f, err := ParseFilter(func(k string) string { return params[k] })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Severity == nil || *f.Severity != severity.Warning {
		t.Errorf("severity = %v", f.Severity)
	}
	if f.MinSeverity == nil || *f.MinSeverity != severity.Error {
		t.Errorf("min severity = %v", f.MinSeverity)
	}
	if f.ActorID == nil || *f.ActorID != 12 {
		t.Errorf("actor = %v", f.ActorID)
	}
	if f.Action != "post_updated" {
		t.Errorf("action = %q", f.Action)
	}
	wantTo := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	if !f.DateTo.Equal(wantTo) {
		t.Errorf("date_to = %v, want end of day %v", f.DateTo, wantTo)
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	for _, tc := range []map[string]string{
		{"severity": "loud"},
		{"actor_id": "x"},
		{"date_from": "yesterday"},
	} {
		_, err := ParseFilter(func(k string) string { return tc[k] })
		assertAppError(t, err, 400)
	}
}

package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/severity"
)

// Event is everything the assembler needs to build one record.
type Event struct {
	Actor       Actor
	ObjectKind  string
	ObjectID    string
	ObjectLabel string
	Action      string
	Changes     *changeset.ChangeSet
	Severity    severity.Level
	Links       []Link

	// Lifecycle marks creation, deletion and authentication events, which
	// are recorded even without field changes.
	Lifecycle bool

	CorrelationID string
	At            time.Time
}

// Assemble builds the record for ev. It returns nil when the change set is
// empty and the event is not a lifecycle event: nothing loggable happened.
func Assemble(ev Event) (*LogRecord, error) {
	if ev.Changes.IsEmpty() && !ev.Lifecycle {
		return nil, nil
	}

	var details json.RawMessage
	if !ev.Changes.IsEmpty() {
		b, err := json.Marshal(ev.Changes)
		if err != nil {
			return nil, fmt.Errorf("serializing change set: %w", err)
		}
		details = b
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	links := make([]Link, 0, len(ev.Links))
	for _, l := range ev.Links {
		if l.URL != "" {
			links = append(links, l)
		}
	}

	return &LogRecord{
		ActorID:       ev.Actor.ID,
		ActorIP:       ev.Actor.IP,
		CreatedAt:     at.UTC(),
		Severity:      ev.Severity,
		Action:        ev.Action,
		ObjectKind:    ev.ObjectKind,
		ObjectID:      ev.ObjectID,
		ObjectLabel:   ev.ObjectLabel,
		Details:       details,
		Links:         links,
		CorrelationID: ev.CorrelationID,
	}, nil
}

// Package lifecycle wires entity lifecycle notifications to the audit
// pipeline. The Coordinator sequences before-capture, after-detection,
// classification, assembly and storage for every notification, and owns
// the request-scoped duplicate guard. It is fail-open: nothing it does can
// surface an error to the mutation that triggered it.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/keyxmakerx/audittrail/internal/detectors"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/metrics"
	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
	"github.com/keyxmakerx/audittrail/internal/severity"
)

// Event is one of the three abstract lifecycle events.
type Event string

const (
	BeforeMutation Event = "before_mutation"
	AfterMutation  Event = "after_mutation"
	Deleted        Event = "deleted"
)

// Notification reports one lifecycle event of one entity.
type Notification struct {
	Event Event  `json:"event"`
	Kind  string `json:"kind"`
	ID    string `json:"id"`

	// IsNew marks an after_mutation that created the entity.
	IsNew bool `json:"is_new,omitempty"`

	// Partial, on before_mutation, holds only the fields about to change;
	// they are merged into the pending snapshot. With State also set, the
	// state is captured first and Partial wins for the fields it names.
	Partial map[string]any `json:"partial,omitempty"`

	// State is the entity's state at the time of the event, pushed by the
	// host instead of being read back from the entity store.
	State map[string]any `json:"state,omitempty"`

	ActorID int64        `json:"actor_id,omitempty"`
	IP      string       `json:"ip,omitempty"`
	Links   []audit.Link `json:"links,omitempty"`
}

// UnmarshalJSON accepts the id as a JSON string or number.
func (n *Notification) UnmarshalJSON(b []byte) error {
	type plain Notification
	aux := struct {
		*plain
		ID any `json:"id"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n.ID = entitystore.IDString(aux.ID)
	return nil
}

// Validate checks that n names a known event and an entity.
func (n Notification) Validate() error {
	switch n.Event {
	case BeforeMutation, AfterMutation, Deleted:
	default:
		return fmt.Errorf("unknown event %q", n.Event)
	}
	if strings.TrimSpace(n.Kind) == "" {
		return errors.New("kind is required")
	}
	if strings.TrimSpace(n.ID) == "" {
		return errors.New("id is required")
	}
	return nil
}

// Recorder persists assembled records. audit.AuditService implements it.
type Recorder interface {
	Record(ctx context.Context, rec *audit.LogRecord) error
}

// Coordinator drives the audit pipeline.
type Coordinator struct {
	registry   *detectors.Registry
	classifier *severity.Classifier
	recorder   Recorder
	entities   entitystore.Store
	now        func() time.Time
}

// NewCoordinator creates a coordinator. entities is the base store used
// for login lookups and as the fallback of every request overlay.
func NewCoordinator(registry *detectors.Registry, classifier *severity.Classifier, recorder Recorder, entities entitystore.Store) *Coordinator {
	return &Coordinator{
		registry:   registry,
		classifier: classifier,
		recorder:   recorder,
		entities:   entities,
		now:        time.Now,
	}
}

// Scope starts a request scope on ctx. Notifications handled in one scope
// share a duplicate guard and an overlay of pushed state.
func (c *Coordinator) Scope(ctx context.Context, correlationID string) context.Context {
	return NewScope(ctx, c.entities, correlationID)
}

// Handle processes one notification. It never fails: errors and panics are
// logged and counted.
func (c *Coordinator) Handle(ctx context.Context, n Notification) {
	defer c.recoverPanic("notification", slog.String("kind", n.Kind), slog.String("id", n.ID))

	metrics.Notification(n.Kind, string(n.Event))
	if _, err := c.Process(ctx, n); err != nil {
		slog.Warn("audit pipeline failed",
			slog.String("event", string(n.Event)),
			slog.String("kind", n.Kind),
			slog.String("id", n.ID),
			slog.Any("error", err),
		)
	}
}

// Process runs one notification through the pipeline and returns the
// stored record, if any. Unlike Handle it reports errors.
func (c *Coordinator) Process(ctx context.Context, n Notification) (*audit.LogRecord, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	det, ok := c.registry.Get(n.Kind)
	if !ok {
		metrics.Suppressed(metrics.ReasonUntracked)
		slog.Debug("notification for untracked kind", slog.String("kind", n.Kind))
		return nil, nil
	}

	overlay := entitystore.OverlayFrom(ctx)
	if overlay == nil && n.State != nil {
		ctx = c.Scope(ctx, CorrelationID(ctx))
		overlay = entitystore.OverlayFrom(ctx)
	}

	switch n.Event {
	case BeforeMutation:
		if n.State != nil {
			overlay.Push(n.Kind, n.ID, n.State)
			// Capture the pushed state first; a partial then overrides
			// the fields it names.
			if n.Partial != nil {
				if err := det.BeforeMutation(ctx, n.ID, nil); err != nil {
					metrics.Failure(metrics.StageSnapshot)
					return nil, err
				}
			}
		}
		if err := det.BeforeMutation(ctx, n.ID, n.Partial); err != nil {
			metrics.Failure(metrics.StageSnapshot)
			return nil, err
		}
		return nil, nil

	case AfterMutation:
		if !GuardFrom(ctx).First(n.Event, n.Kind, n.ID) {
			metrics.Suppressed(metrics.ReasonDuplicate)
			slog.Debug("duplicate notification suppressed",
				slog.String("kind", n.Kind),
				slog.String("id", n.ID),
			)
			// A before_mutation of the repeated mutation may have captured
			// again; that snapshot must not become a later request's prior
			// state.
			if err := det.Discard(ctx, n.ID); err != nil {
				metrics.Failure(metrics.StageSnapshot)
				return nil, err
			}
			return nil, nil
		}
		if n.State != nil {
			overlay.Push(n.Kind, n.ID, n.State)
		}

		start := c.now()
		res, err := det.AfterMutation(ctx, n.ID, n.IsNew)
		if err != nil {
			metrics.Failure(metrics.StageDetect)
			return nil, err
		}
		if res == nil {
			metrics.Suppressed(metrics.ReasonVanished)
			return nil, nil
		}
		rec, err := c.emit(ctx, n, res)
		metrics.ObserveDetect(n.Kind, c.now().Sub(start))
		return rec, err

	default: // Deleted
		if !GuardFrom(ctx).First(n.Event, n.Kind, n.ID) {
			metrics.Suppressed(metrics.ReasonDuplicate)
			if err := det.Discard(ctx, n.ID); err != nil {
				metrics.Failure(metrics.StageSnapshot)
				return nil, err
			}
			return nil, nil
		}
		res, err := det.Deleted(ctx, n.ID, n.State)
		if overlay != nil {
			overlay.MarkDeleted(n.Kind, n.ID)
		}
		if err != nil {
			metrics.Failure(metrics.StageDetect)
			return nil, err
		}
		return c.emit(ctx, n, res)
	}
}

// emit classifies and assembles a detection result and stores the record.
func (c *Coordinator) emit(ctx context.Context, n Notification, res *detectors.Result) (*audit.LogRecord, error) {
	level := c.classifier.Classify(res.Kind, res.Action, res.Changes)

	rec, err := audit.Assemble(audit.Event{
		Actor:         audit.Actor{ID: n.ActorID, IP: n.IP},
		ObjectKind:    res.Kind,
		ObjectID:      res.ObjectID,
		ObjectLabel:   res.Label,
		Action:        res.Action,
		Changes:       res.Changes,
		Severity:      level,
		Links:         n.Links,
		Lifecycle:     res.Created || res.Deleted,
		CorrelationID: CorrelationID(ctx),
		At:            c.now(),
	})
	if err != nil {
		metrics.Failure(metrics.StageRecord)
		return nil, err
	}
	if rec == nil {
		metrics.Suppressed(metrics.ReasonNoChanges)
		slog.Debug("no loggable changes",
			slog.String("kind", res.Kind),
			slog.String("id", res.ObjectID),
		)
		return nil, nil
	}

	return rec, c.store(ctx, rec)
}

// store hands rec to the recorder and counts the outcome.
func (c *Coordinator) store(ctx context.Context, rec *audit.LogRecord) error {
	if err := c.recorder.Record(ctx, rec); err != nil {
		metrics.Failure(metrics.StageRecord)
		return fmt.Errorf("recording %s: %w", rec.Action, err)
	}
	metrics.Recorded(rec.ObjectKind, rec.Severity.String())
	return nil
}

// LoginFailed records a failed login for username from ip. The username is
// resolved against user logins, then emails, to tell a wrong password from
// an unknown account.
func (c *Coordinator) LoginFailed(ctx context.Context, username, ip string) {
	defer c.recoverPanic("login failure", slog.String("ip", ip))

	metrics.Notification(entitystore.KindUser, "login_failed")
	if _, err := c.RecordLoginFailure(ctx, username, ip); err != nil {
		slog.Warn("recording login failure failed", slog.String("ip", ip), slog.Any("error", err))
	}
}

// RecordLoginFailure is LoginFailed that reports the record and errors.
func (c *Coordinator) RecordLoginFailure(ctx context.Context, username, ip string) (*audit.LogRecord, error) {
	userID := c.lookupUser(ctx, username)
	level := c.classifier.ClassifyLoginFailure(ctx, ip, userID != "")

	rec, err := audit.Assemble(audit.Event{
		Actor:         audit.Actor{IP: ip},
		ObjectKind:    entitystore.KindUser,
		ObjectID:      userID,
		ObjectLabel:   username,
		Action:        audit.ActionLoginFailed,
		Severity:      level,
		Lifecycle:     true,
		CorrelationID: CorrelationID(ctx),
		At:            c.now(),
	})
	if err != nil {
		return nil, err
	}
	return rec, c.store(ctx, rec)
}

// LoginSucceeded records a successful login of userID from ip.
func (c *Coordinator) LoginSucceeded(ctx context.Context, userID int64, ip string) {
	defer c.recoverPanic("login", slog.Int64("user_id", userID))

	metrics.Notification(entitystore.KindUser, "logged_in")
	if _, err := c.RecordLogin(ctx, userID, ip); err != nil {
		slog.Warn("recording login failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// RecordLogin is LoginSucceeded that reports the record and errors.
func (c *Coordinator) RecordLogin(ctx context.Context, userID int64, ip string) (*audit.LogRecord, error) {
	id := fmt.Sprintf("%d", userID)
	label := id
	if c.entities != nil {
		if state, err := c.entities.Read(ctx, entitystore.KindUser, id); err == nil {
			if l := entitystore.LabelOf(entitystore.KindUser, state); l != "" {
				label = l
			}
		}
	}

	rec, err := audit.Assemble(audit.Event{
		Actor:         audit.Actor{ID: userID, IP: ip},
		ObjectKind:    entitystore.KindUser,
		ObjectID:      id,
		ObjectLabel:   label,
		Action:        audit.ActionLoggedIn,
		Severity:      c.classifier.Classify(entitystore.KindUser, audit.ActionLoggedIn, nil),
		Lifecycle:     true,
		CorrelationID: CorrelationID(ctx),
		At:            c.now(),
	})
	if err != nil {
		return nil, err
	}
	return rec, c.store(ctx, rec)
}

// lookupUser returns the id of the account named by username, or "".
func (c *Coordinator) lookupUser(ctx context.Context, username string) string {
	username = strings.TrimSpace(username)
	if c.entities == nil || username == "" {
		return ""
	}

	fields := []string{"login"}
	if strings.Contains(username, "@") {
		fields = append(fields, "email")
	}
	for _, field := range fields {
		id, err := c.entities.Lookup(ctx, entitystore.KindUser, field, username)
		if err == nil && id != "" {
			return id
		}
		if err != nil && !errors.Is(err, entitystore.ErrNotFound) {
			slog.Debug("user lookup failed", slog.String("field", field), slog.Any("error", err))
		}
	}
	return ""
}

// recoverPanic keeps a panicking detector from reaching the caller.
func (c *Coordinator) recoverPanic(what string, attrs ...slog.Attr) {
	r := recover()
	if r == nil {
		return
	}
	metrics.Failure(metrics.StagePanic)

	args := []any{
		slog.String("while", what),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	slog.Error("audit pipeline panic recovered", args...)
}

package detectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/diff"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/snapshot"
)

// Section names shared by the kind definitions.
const (
	SectionBasic   = "basic"
	SectionSummary = "summary"
)

// Section is a named group of fields diffed together.
type Section struct {
	Name   string
	Fields []changeset.Field
}

// Relation is a related-id list read through the entity store and stored
// in the snapshot under its own name.
type Relation struct {
	Name  string
	Label string
	Kind  string
}

// Definition declares how one entity kind is tracked.
type Definition struct {
	Kind string

	// Sections are diffed in order with the generic field engine.
	Sections []Section

	// Relations are loaded alongside the entity and diffed as reference
	// sets in RelationSection.
	Relations       []Relation
	RelationSection string

	// Summary lists the fields shown for created and deleted entities.
	// Defaults to the fields of the first section.
	Summary []changeset.Field

	// SectionsFor replaces Sections for kinds whose field table depends on
	// the entity itself.
	SectionsFor func(id string, old, new map[string]any) []Section

	// Extra adds special-cased sections (set diffs, trees) to cs.
	Extra func(ctx context.Context, e *diff.Engine, old, new map[string]any, cs *changeset.ChangeSet)

	// Action refines the update action from the before and after states.
	// It returns "" to keep "{kind}_updated".
	Action func(old, new map[string]any, cs *changeset.ChangeSet) string

	// Label overrides the display label taken from the entity state.
	Label func(id string, state map[string]any) string

	// CreatedAction and DeletedAction override the default verbs.
	CreatedAction string
	DeletedAction string
}

// Tracker is the generic Detector driven by a Definition.
type Tracker struct {
	def  Definition
	deps Deps
}

// NewTracker creates a detector for def.
func NewTracker(def Definition, deps Deps) *Tracker {
	return &Tracker{def: def, deps: deps}
}

// Kind implements Detector.
func (t *Tracker) Kind() string {
	return t.def.Kind
}

// BeforeMutation implements Detector. When a snapshot is already pending
// only keys it lacks are added, so the earliest capture of a field wins.
func (t *Tracker) BeforeMutation(ctx context.Context, id string, partial map[string]any) error {
	key := snapshot.NewKey(t.def.Kind, id)

	if partial != nil {
		if err := t.deps.Snapshots.Merge(ctx, key, partial); err != nil {
			return fmt.Errorf("merging %s snapshot: %w", key, err)
		}
		return nil
	}

	state, err := t.load(ctx, id)
	if errors.Is(err, entitystore.ErrNotFound) {
		// Nothing to capture yet; the entity is about to be created.
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}

	existing, ok, err := t.deps.Snapshots.Peek(ctx, key)
	if err != nil {
		return fmt.Errorf("peeking %s snapshot: %w", key, err)
	}
	if !ok {
		if err := t.deps.Snapshots.Capture(ctx, key, state); err != nil {
			return fmt.Errorf("capturing %s snapshot: %w", key, err)
		}
		return nil
	}

	missing := make(map[string]any)
	for k, v := range state {
		if _, has := existing[k]; !has {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := t.deps.Snapshots.Merge(ctx, key, missing); err != nil {
		return fmt.Errorf("merging %s snapshot: %w", key, err)
	}
	return nil
}

// AfterMutation implements Detector.
func (t *Tracker) AfterMutation(ctx context.Context, id string, isNew bool) (*Result, error) {
	key := snapshot.NewKey(t.def.Kind, id)

	old, hadSnapshot, err := t.deps.Snapshots.Consume(ctx, key)
	if err != nil {
		// Unreadable prior state is the same as none.
		slog.Warn("consuming snapshot failed",
			slog.String("key", key.String()),
			slog.Any("error", err),
		)
		old, hadSnapshot = nil, false
	}

	current, err := t.load(ctx, id)
	if errors.Is(err, entitystore.ErrNotFound) {
		slog.Debug("entity vanished before detection", slog.String("key", key.String()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	res := &Result{
		Kind:     t.def.Kind,
		ObjectID: id,
		Label:    t.label(id, current),
		Changes:  changeset.New(),
	}

	if isNew {
		res.Action = t.createdAction()
		res.Created = true
		for _, c := range t.deps.Engine.Summarize(ctx, t.summaryFields(id, current), current, changeset.Added) {
			res.Changes.Add(SectionSummary, c)
		}
		return res, nil
	}

	res.Action = action(t.def.Kind, "updated")
	if !hadSnapshot {
		slog.Debug("no prior state for update", slog.String("key", key.String()))
		return res, nil
	}

	t.diff(ctx, id, old, current, res.Changes)
	if t.def.Action != nil {
		if a := t.def.Action(old, current, res.Changes); a != "" {
			res.Action = a
		}
	}
	return res, nil
}

// Discard implements Detector.
func (t *Tracker) Discard(ctx context.Context, id string) error {
	key := snapshot.NewKey(t.def.Kind, id)
	if _, _, err := t.deps.Snapshots.Consume(ctx, key); err != nil {
		return fmt.Errorf("discarding %s snapshot: %w", key, err)
	}
	return nil
}

// Deleted implements Detector. A pending snapshot is evicted; it also
// serves as the description when the caller has no state.
func (t *Tracker) Deleted(ctx context.Context, id string, state map[string]any) (*Result, error) {
	key := snapshot.NewKey(t.def.Kind, id)

	pending, ok, err := t.deps.Snapshots.Consume(ctx, key)
	if err != nil {
		slog.Warn("consuming snapshot failed",
			slog.String("key", key.String()),
			slog.Any("error", err),
		)
	}
	if state == nil && ok {
		state = pending
	}
	if state == nil {
		if s, err := t.load(ctx, id); err == nil {
			state = s
		}
	}

	res := &Result{
		Action:   t.deletedAction(),
		Kind:     t.def.Kind,
		ObjectID: id,
		Label:    t.label(id, state),
		Changes:  changeset.New(),
		Deleted:  true,
	}
	for _, c := range t.deps.Engine.Summarize(ctx, t.summaryFields(id, state), state, changeset.Removed) {
		res.Changes.Add(SectionSummary, c)
	}
	return res, nil
}

// diff fills cs with the changes between old and new.
func (t *Tracker) diff(ctx context.Context, id string, old, new map[string]any, cs *changeset.ChangeSet) {
	for _, s := range t.sections(id, old, new) {
		for _, c := range t.deps.Engine.Diff(ctx, s.Fields, old, new) {
			cs.Add(s.Name, c)
		}
	}

	if len(t.def.Relations) > 0 {
		for _, c := range t.deps.Engine.Diff(ctx, t.relationFields(), old, new) {
			cs.Add(t.def.RelationSection, c)
		}
	}

	if t.def.Extra != nil {
		t.def.Extra(ctx, t.deps.Engine, old, new, cs)
	}
}

func (t *Tracker) sections(id string, old, new map[string]any) []Section {
	if t.def.SectionsFor != nil {
		return t.def.SectionsFor(id, old, new)
	}
	return t.def.Sections
}

func (t *Tracker) relationFields() []changeset.Field {
	fields := make([]changeset.Field, len(t.def.Relations))
	for i, r := range t.def.Relations {
		fields[i] = changeset.Field{Name: r.Name, Label: r.Label, Hint: changeset.RefList(r.Kind)}
	}
	return fields
}

func (t *Tracker) summaryFields(id string, state map[string]any) []changeset.Field {
	if len(t.def.Summary) > 0 {
		return t.def.Summary
	}
	sections := t.sections(id, state, state)
	if len(sections) == 0 {
		return nil
	}
	return sections[0].Fields
}

// load reads the entity and its relations. A relation that cannot be read
// is left out of the state rather than failing the read.
func (t *Tracker) load(ctx context.Context, id string) (map[string]any, error) {
	state, err := t.deps.Entities.Read(ctx, t.def.Kind, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = make(map[string]any)
	}

	for _, r := range t.def.Relations {
		ids, err := t.deps.Entities.ReadRelated(ctx, t.def.Kind, id, r.Name)
		if err != nil {
			slog.Debug("reading relation failed",
				slog.String("kind", t.def.Kind),
				slog.String("id", id),
				slog.String("relation", r.Name),
				slog.Any("error", err),
			)
			continue
		}
		list := make([]any, len(ids))
		for i, v := range ids {
			list[i] = v
		}
		state[r.Name] = list
	}
	return state, nil
}

func (t *Tracker) label(id string, state map[string]any) string {
	if t.def.Label != nil {
		return t.def.Label(id, state)
	}
	if l := entitystore.LabelOf(t.def.Kind, state); l != "" {
		return l
	}
	return id
}

func (t *Tracker) createdAction() string {
	if t.def.CreatedAction != "" {
		return t.def.CreatedAction
	}
	return action(t.def.Kind, "created")
}

func (t *Tracker) deletedAction() string {
	if t.def.DeletedAction != "" {
		return t.def.DeletedAction
	}
	return action(t.def.Kind, "deleted")
}

// Package detectors turns entity lifecycle notifications into change sets.
// Every tracked entity kind runs the same before -> after -> emitted cycle:
// the prior state is captured into the snapshot store before a mutation,
// consumed once after it, and compared field by field against the current
// state read from the entity store. Each kind declares its fields once in a
// Definition; the generic tracker does the rest.
package detectors

import (
	"context"
	"fmt"
	"sort"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/diff"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/snapshot"
)

// Detector tracks one entity kind.
type Detector interface {
	// Kind returns the entity kind handled by the detector.
	Kind() string

	// BeforeMutation captures the entity's prior state. A non-nil partial is
	// merged into the pending snapshot instead of reading the entity.
	BeforeMutation(ctx context.Context, id string, partial map[string]any) error

	// AfterMutation consumes the prior state and diffs it against the
	// current one. It returns nil when the entity has vanished.
	AfterMutation(ctx context.Context, id string, isNew bool) (*Result, error)

	// Discard drops the pending snapshot without comparing it, for
	// mutations whose record is suppressed.
	Discard(ctx context.Context, id string) error

	// Deleted emits a summary of a removed entity. state is the entity's
	// last known state if the caller has it.
	Deleted(ctx context.Context, id string, state map[string]any) (*Result, error)
}

// Result is the output of one detection: what happened to which entity.
type Result struct {
	Action   string
	Kind     string
	ObjectID string
	Label    string
	Changes  *changeset.ChangeSet

	// Created and Deleted mark lifecycle results that are logged even
	// without field changes.
	Created bool
	Deleted bool
}

// Deps are the collaborators every detector needs.
type Deps struct {
	Snapshots snapshot.Store
	Entities  entitystore.Store
	Engine    *diff.Engine
}

// Registry maps entity kinds to their detectors.
type Registry struct {
	detectors map[string]Detector
}

// NewRegistry creates a registry with a detector for every tracked kind.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{detectors: make(map[string]Detector)}
	for _, def := range Definitions() {
		r.Register(NewTracker(def, deps))
	}
	return r
}

// Register adds or replaces the detector for d.Kind().
func (r *Registry) Register(d Detector) {
	r.detectors[d.Kind()] = d
}

// Get returns the detector for kind.
func (r *Registry) Get(kind string) (Detector, bool) {
	d, ok := r.detectors[kind]
	return d, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.detectors))
	for k := range r.detectors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Definitions returns the built-in entity kind definitions.
func Definitions() []Definition {
	return []Definition{
		postDefinition(),
		termDefinition(),
		userDefinition(),
		settingDefinition(),
		fieldGroupDefinition(),
		pluginDefinition(),
		mediaDefinition(),
	}
}

// action builds the "{kind}_{verb}" action name.
func action(kind, verb string) string {
	return fmt.Sprintf("%s_%s", kind, verb)
}

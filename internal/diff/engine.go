package diff

import (
	"context"
	"sort"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

// ChangedValue is shown as the new value of hidden fields.
const ChangedValue = "(changed)"

// Engine turns raw before/after values into change descriptors by
// dispatching on the field's type hint.
type Engine struct {
	format *format.Formatter
}

// NewEngine creates an engine that renders values with f.
func NewEngine(f *format.Formatter) *Engine {
	return &Engine{format: f}
}

// Formatter returns the formatter used for display values.
func (e *Engine) Formatter() *format.Formatter {
	return e.format
}

// Compare diffs one field. The returned change has Kind NoChange when the
// values are equal under the hint's normalization.
func (e *Engine) Compare(ctx context.Context, field changeset.Field, old, new any) changeset.Change {
	c := changeset.Change{Field: field.Name, Label: field.Label, Kind: changeset.NoChange}
	if c.Label == "" {
		c.Label = field.Name
	}

	h := field.Hint
	old, new = refValue(old, h.Type), refValue(new, h.Type)
	switch h.Type {
	case changeset.Hidden:
		if !Equal(old, new, changeset.ScalarText) {
			c.Kind = changeset.Modified
			c.Old = format.HiddenValue
			c.New = ChangedValue
		}
		return c

	case changeset.ReferenceIDList, changeset.EnumeratedChoiceList, changeset.NestedMapList:
		return e.compareSet(ctx, c, h, old, new)

	case changeset.NestedMap:
		om, okOld := AsMap(old)
		nm, okNew := AsMap(new)
		if okOld && okNew {
			return e.compareMap(ctx, c, om, nm)
		}

	case changeset.FreeTextLong:
		if Equal(old, new, h.Type) {
			return c
		}
		td := LongText(format.Text(old), format.Text(new))
		c.Kind = kindFor(old, new)
		c.Old = e.format.Format(ctx, old, h)
		c.New = e.format.Format(ctx, new, h)
		c.Detail = td.Detail()
		return c
	}

	if Equal(old, new, h.Type) {
		return c
	}
	c.Kind = kindFor(old, new)
	c.Old = e.format.Format(ctx, old, h)
	c.New = e.format.Format(ctx, new, h)
	return c
}

// kindFor classifies a scalar change. Booleans flipping to false are still
// modifications, not removals.
func kindFor(old, new any) changeset.Kind {
	_, oldBool := old.(bool)
	_, newBool := new.(bool)
	if oldBool || newBool {
		return changeset.Modified
	}
	switch {
	case format.IsEmpty(old) && !format.IsEmpty(new):
		return changeset.Added
	case !format.IsEmpty(old) && format.IsEmpty(new):
		return changeset.Removed
	}
	return changeset.Modified
}

func (e *Engine) compareSet(ctx context.Context, c changeset.Change, h changeset.Hint, old, new any) changeset.Change {
	identity := Identity
	if h.Type == changeset.ReferenceIDList {
		identity = func(v any) string { return entitystore.IDString(v) }
	}

	res := SetDiff(format.ToList(old), format.ToList(new), identity)
	if res.Empty() {
		return c
	}

	c.Added = e.members(ctx, h, res.Added)
	c.Removed = e.members(ctx, h, res.Removed)
	switch {
	case len(c.Removed) == 0:
		c.Kind = changeset.Added
	case len(c.Added) == 0:
		c.Kind = changeset.Removed
	default:
		c.Kind = changeset.Modified
	}
	return c
}

// members formats set members for display.
func (e *Engine) members(ctx context.Context, h changeset.Hint, items []any) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	switch h.Type {
	case changeset.ReferenceIDList:
		ids := make([]string, len(items))
		for i, v := range items {
			ids[i] = entitystore.IDString(v)
		}
		return e.format.ReferenceLabels(ctx, h.RefKind, ids)
	case changeset.EnumeratedChoiceList:
		for _, v := range items {
			out = append(out, e.format.ChoiceLabel(h.Choices, format.Text(v)))
		}
	default:
		for _, v := range items {
			out = append(out, format.Truncate(format.Text(v), e.format.MaxLength()))
		}
	}
	return out
}

// compareMap reports key-level changes of a nested map as children of one
// descriptor.
func (e *Engine) compareMap(ctx context.Context, c changeset.Change, old, new map[string]any) changeset.Change {
	changes := MapDiff(old, new)
	if len(changes) == 0 {
		return c
	}

	c.Kind = changeset.Modified
	for _, pc := range changes {
		c.Children = append(c.Children, changeset.Change{
			Field: pc.Path,
			Label: pc.Path,
			Kind:  pc.Kind,
			Old:   e.leaf(ctx, pc.Old),
			New:   e.leaf(ctx, pc.New),
		})
	}
	return c
}

func (e *Engine) leaf(ctx context.Context, v any) string {
	if v == nil {
		return ""
	}
	return e.format.Format(ctx, v, changeset.Text())
}

// Diff compares every field of a table between two states and returns the
// changed ones in table order.
func (e *Engine) Diff(ctx context.Context, fields []changeset.Field, old, new map[string]any) []changeset.Change {
	var out []changeset.Change
	for _, f := range fields {
		if c := e.Compare(ctx, f, f.Value(old), f.Value(new)); c.IsChange() {
			out = append(out, c)
		}
	}
	return out
}

// Summarize renders the non-empty fields of state as Added descriptors, the
// shape used for created and deleted entities.
func (e *Engine) Summarize(ctx context.Context, fields []changeset.Field, state map[string]any, kind changeset.Kind) []changeset.Change {
	var out []changeset.Change
	for _, f := range fields {
		v := f.Value(state)
		if format.IsEmpty(v) {
			continue
		}
		c := changeset.Change{Field: f.Name, Label: f.Label, Kind: kind}
		display := e.format.Format(ctx, v, f.Hint)
		if kind == changeset.Removed {
			c.Old = display
		} else {
			c.New = display
		}
		out = append(out, c)
	}
	return out
}

// CompareTree diffs two schema trees. Each touched field gets its own
// section named by its composite key: added and removed fields produce one
// descriptor each, common fields one descriptor per changed attribute.
// Attributes listed in attrs use their hints and labels; any other
// attribute is compared as text unless named in ignore. When the stored
// keys were regenerated between captures the trees are matched by
// name, type and position instead.
func (e *Engine) CompareTree(ctx context.Context, old, new []*Node, attrs []changeset.Field, ignore ...string) *changeset.ChangeSet {
	cs := changeset.New()

	byIdentity := !KeysStable(old, new)
	oldFlat := Flatten(old, byIdentity)
	newFlat := Flatten(new, byIdentity)

	oldByPath := make(map[string]*Node, len(oldFlat))
	for _, f := range oldFlat {
		oldByPath[f.Path] = f.Node
	}
	newByPath := make(map[string]*Node, len(newFlat))
	for _, f := range newFlat {
		newByPath[f.Path] = f.Node
	}

	skip := make(map[string]bool, len(attrs)+len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	for _, a := range attrs {
		skip[a.Name] = true
	}

	for _, f := range newFlat {
		on, ok := oldByPath[f.Path]
		if !ok {
			cs.Add(f.Path, fieldDescriptor(f.Node, changeset.Added))
			continue
		}
		for _, c := range e.compareNode(ctx, on, f.Node, attrs, skip) {
			cs.Add(f.Path, c)
		}
	}
	for _, f := range oldFlat {
		if _, ok := newByPath[f.Path]; !ok {
			cs.Add(f.Path, fieldDescriptor(f.Node, changeset.Removed))
		}
	}
	return cs
}

// compareNode diffs the attributes of one field present on both sides.
// Children are not visited here; they have their own flattened entries.
func (e *Engine) compareNode(ctx context.Context, old, new *Node, attrs []changeset.Field, skip map[string]bool) []changeset.Change {
	var out []changeset.Change

	if old.Name != new.Name {
		out = append(out, e.Compare(ctx, changeset.Field{Name: "name", Label: "Name", Hint: changeset.Text()}, old.Name, new.Name))
	}
	if old.Type != new.Type {
		out = append(out, e.Compare(ctx, changeset.Field{Name: "type", Label: "Type", Hint: changeset.Text()}, old.Type, new.Type))
	}
	out = append(out, e.Diff(ctx, attrs, old.Attrs, new.Attrs)...)

	// Remaining attributes in sorted order.
	names := make(map[string]bool)
	for k := range old.Attrs {
		names[k] = true
	}
	for k := range new.Attrs {
		names[k] = true
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		ov, nv := old.Attrs[k], new.Attrs[k]
		hint := changeset.Text()
		_, om := ov.(map[string]any)
		_, nm := nv.(map[string]any)
		if om || nm {
			hint = changeset.Map()
		}
		c := e.Compare(ctx, changeset.Field{Name: k, Label: k, Hint: hint}, ov, nv)
		if c.IsChange() {
			out = append(out, c)
		}
	}

	// Drop the no_change entries from the name and type comparisons.
	filtered := out[:0]
	for _, c := range out {
		if c.IsChange() {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// fieldDescriptor describes a whole field being added or removed.
func fieldDescriptor(n *Node, kind changeset.Kind) changeset.Change {
	display := n.Label()
	if n.Type != "" {
		display += " (" + n.Type + ")"
	}
	c := changeset.Change{Field: "field", Label: n.Label(), Kind: kind}
	if kind == changeset.Removed {
		c.Old = display
	} else {
		c.New = display
	}
	return c
}

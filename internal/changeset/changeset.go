package changeset

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Kind is the kind of a field-level change.
type Kind string

const (
	Modified Kind = "modified"
	Added    Kind = "added"
	Removed  Kind = "removed"
	NoChange Kind = "no_change"
)

// Change describes one field-level change. Display strings are already
// formatted and bounded in length.
type Change struct {
	// Field is the field name (or flattened path for nested maps).
	Field string

	// Label is the human-readable field name.
	Label string

	// Kind classifies the change. NoChange values never reach a ChangeSet.
	Kind Kind

	// Old and New are the formatted before/after values.
	Old string
	New string

	// Added and Removed hold set members for set-diffed fields.
	Added   []string
	Removed []string

	// Detail holds extra structured data (long-text statistics and samples).
	Detail map[string]any

	// Children holds key-level changes of nested map fields.
	Children []Change
}

// IsChange reports whether c describes an actual change.
func (c Change) IsChange() bool {
	return c.Kind != "" && c.Kind != NoChange
}

// Section is a named group of changes. A section can carry its own change
// descriptors, a nested change set, or both.
type Section struct {
	Name    string
	Changes []Change
	Nested  *ChangeSet
}

// empty reports whether the section holds nothing loggable.
func (s *Section) empty() bool {
	return len(s.Changes) == 0 && s.Nested.IsEmpty()
}

// ChangeSet is an ordered mapping from section name to changes. The zero
// value is not usable; create one with New. A nil *ChangeSet is treated as
// empty by every read method.
type ChangeSet struct {
	sections []*Section
	index    map[string]int
}

// New creates an empty ChangeSet.
func New() *ChangeSet {
	return &ChangeSet{index: make(map[string]int)}
}

// section returns the named section, creating it at the end if needed.
func (cs *ChangeSet) section(name string) *Section {
	if i, ok := cs.index[name]; ok {
		return cs.sections[i]
	}
	s := &Section{Name: name}
	cs.index[name] = len(cs.sections)
	cs.sections = append(cs.sections, s)
	return s
}

// Add appends a change to the named section. NoChange descriptors are
// dropped. A second change for the same field in the same section replaces
// the first.
func (cs *ChangeSet) Add(section string, c Change) {
	if !c.IsChange() {
		return
	}
	s := cs.section(section)
	for i := range s.Changes {
		if s.Changes[i].Field == c.Field {
			s.Changes[i] = c
			return
		}
	}
	s.Changes = append(s.Changes, c)
}

// AddNested attaches a nested change set under the named section. Empty
// nested sets are dropped.
func (cs *ChangeSet) AddNested(section string, nested *ChangeSet) {
	if nested.IsEmpty() {
		return
	}
	cs.section(section).Nested = nested
}

// IsEmpty reports whether no section holds a loggable change.
func (cs *ChangeSet) IsEmpty() bool {
	if cs == nil {
		return true
	}
	for _, s := range cs.sections {
		if !s.empty() {
			return false
		}
	}
	return true
}

// Sections returns the non-empty sections in insertion order.
func (cs *ChangeSet) Sections() []Section {
	if cs == nil {
		return nil
	}
	out := make([]Section, 0, len(cs.sections))
	for _, s := range cs.sections {
		if !s.empty() {
			out = append(out, *s)
		}
	}
	return out
}

// Section returns the named section if it holds anything.
func (cs *ChangeSet) Section(name string) (Section, bool) {
	if cs == nil {
		return Section{}, false
	}
	i, ok := cs.index[name]
	if !ok || cs.sections[i].empty() {
		return Section{}, false
	}
	return *cs.sections[i], true
}

// Find returns the change recorded for field in section.
func (cs *ChangeSet) Find(section, field string) (Change, bool) {
	s, ok := cs.Section(section)
	if !ok {
		return Change{}, false
	}
	for _, c := range s.Changes {
		if c.Field == field {
			return c, true
		}
	}
	return Change{}, false
}

// Len returns the number of change descriptors, counting nested sets.
func (cs *ChangeSet) Len() int {
	n := 0
	for _, s := range cs.Sections() {
		n += len(s.Changes)
		n += s.Nested.Len()
	}
	return n
}

// Fields returns the sorted, de-duplicated names of every touched field,
// including fields of nested sets.
func (cs *ChangeSet) Fields() []string {
	seen := make(map[string]bool)
	cs.collectFields(seen)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (cs *ChangeSet) collectFields(seen map[string]bool) {
	for _, s := range cs.Sections() {
		for _, c := range s.Changes {
			seen[c.Field] = true
		}
		s.Nested.collectFields(seen)
	}
}

// MarshalJSON serializes the change set as an object keyed by section name,
// preserving insertion order. Each section is an object keyed by field name
// whose values are descriptors shaped {label, change, old, new} or
// {label, change, added, removed}; nested sets serialize as nested objects
// of the same shape.
func (cs *ChangeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := cs.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (cs *ChangeSet) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, s := range cs.Sections() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeSection(buf, s); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeSection writes "name": {...}. Nested sections become keys of their
// parent section rather than a separate level.
func writeSection(buf *bytes.Buffer, s Section) error {
	if err := writeKey(buf, s.Name); err != nil {
		return err
	}
	buf.WriteByte('{')
	n := 0
	for _, c := range s.Changes {
		if n > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(buf, c.Field); err != nil {
			return err
		}
		if err := writeChange(buf, c); err != nil {
			return err
		}
		n++
	}
	for _, ns := range s.Nested.Sections() {
		if n > 0 {
			buf.WriteByte(',')
		}
		if err := writeSection(buf, ns); err != nil {
			return err
		}
		n++
	}
	buf.WriteByte('}')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func writeChange(buf *bytes.Buffer, c Change) error {
	buf.WriteByte('{')
	if err := writeKey(buf, "label"); err != nil {
		return err
	}
	if err := writeValue(buf, c.Label); err != nil {
		return err
	}
	buf.WriteByte(',')
	if err := writeKey(buf, "change"); err != nil {
		return err
	}
	if err := writeValue(buf, string(c.Kind)); err != nil {
		return err
	}

	isSet := len(c.Added) > 0 || len(c.Removed) > 0
	if isSet {
		buf.WriteByte(',')
		if err := writeKey(buf, "added"); err != nil {
			return err
		}
		if err := writeValue(buf, nonNil(c.Added)); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := writeKey(buf, "removed"); err != nil {
			return err
		}
		if err := writeValue(buf, nonNil(c.Removed)); err != nil {
			return err
		}
	}
	if !isSet || c.Old != "" || c.New != "" {
		buf.WriteByte(',')
		if err := writeKey(buf, "old"); err != nil {
			return err
		}
		if err := writeValue(buf, c.Old); err != nil {
			return err
		}
		buf.WriteByte(',')
		if err := writeKey(buf, "new"); err != nil {
			return err
		}
		if err := writeValue(buf, c.New); err != nil {
			return err
		}
	}
	if len(c.Detail) > 0 {
		buf.WriteByte(',')
		if err := writeKey(buf, "detail"); err != nil {
			return err
		}
		if err := writeValue(buf, c.Detail); err != nil {
			return err
		}
	}
	if len(c.Children) > 0 {
		buf.WriteByte(',')
		if err := writeKey(buf, "fields"); err != nil {
			return err
		}
		buf.WriteByte('{')
		for i, child := range c.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(buf, child.Field); err != nil {
				return err
			}
			if err := writeChange(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Package changeset defines the vocabulary shared by the differ, the entity
// detectors and the log record assembler: field type hints, the typed field
// table each entity kind declares, field-level change descriptors and the
// ordered, sectioned change set that ends up serialized into a log record.
package changeset

// HintType classifies a field for formatting and diff dispatch.
type HintType int

const (
	// ScalarText is a short single-line string.
	ScalarText HintType = iota

	// ScalarNumber is an integer or decimal, possibly stored as a string.
	ScalarNumber

	// ScalarBoolean is a flag. Stored values like "1", "yes" and "on" count as true.
	ScalarBoolean

	// Date is a timestamp in RFC3339, MySQL datetime, date-only or unix seconds.
	Date

	// ReferenceID is the id of another entity, resolved to a label for display.
	ReferenceID

	// ReferenceIDList is a list of ids of another entity kind, diffed as a set.
	ReferenceIDList

	// EnumeratedChoice is one value out of a fixed label table.
	EnumeratedChoice

	// EnumeratedChoiceList is a set of values out of a fixed label table.
	EnumeratedChoiceList

	// NestedMap is an arbitrary map, diffed key by key on flattened paths.
	NestedMap

	// NestedMapList is a list of maps, diffed as a set of whole items.
	NestedMapList

	// FreeTextLong is markup or prose that gets the long-text diff.
	FreeTextLong

	// Price is a decimal amount shown with two decimals.
	Price

	// Hidden is a secret (password, token). Values are never displayed.
	Hidden
)

// hintNames holds the wire names of each hint type.
var hintNames = map[HintType]string{
	ScalarText:           "scalar_text",
	ScalarNumber:         "scalar_number",
	ScalarBoolean:        "scalar_boolean",
	Date:                 "date",
	ReferenceID:          "reference_id",
	ReferenceIDList:      "reference_id_list",
	EnumeratedChoice:     "enumerated_choice",
	EnumeratedChoiceList: "enumerated_choice_list",
	NestedMap:            "nested_map",
	NestedMapList:        "nested_map_list",
	FreeTextLong:         "free_text_long",
	Price:                "price",
	Hidden:               "hidden",
}

// String returns the wire name of the hint type.
func (t HintType) String() string {
	if name, ok := hintNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsList reports whether values of this type are collections diffed as sets.
func (t HintType) IsList() bool {
	return t == ReferenceIDList || t == EnumeratedChoiceList || t == NestedMapList
}

// Hint is a HintType plus the parameters some types need: the entity kind a
// reference points at, and the label table of an enumerated choice.
type Hint struct {
	Type    HintType
	RefKind string
	Choices map[string]string
}

// Text returns a scalar text hint.
func Text() Hint { return Hint{Type: ScalarText} }

// Number returns a scalar number hint.
func Number() Hint { return Hint{Type: ScalarNumber} }

// Bool returns a boolean hint.
func Bool() Hint { return Hint{Type: ScalarBoolean} }

// When returns a date hint.
func When() Hint { return Hint{Type: Date} }

// Ref returns a reference hint pointing at entities of the given kind.
func Ref(kind string) Hint { return Hint{Type: ReferenceID, RefKind: kind} }

// RefList returns a reference list hint pointing at entities of the given kind.
func RefList(kind string) Hint { return Hint{Type: ReferenceIDList, RefKind: kind} }

// Choice returns an enumerated choice hint with the given label table.
func Choice(labels map[string]string) Hint {
	return Hint{Type: EnumeratedChoice, Choices: labels}
}

// ChoiceList returns an enumerated choice list hint with the given label table.
func ChoiceList(labels map[string]string) Hint {
	return Hint{Type: EnumeratedChoiceList, Choices: labels}
}

// Map returns a nested map hint.
func Map() Hint { return Hint{Type: NestedMap} }

// MapList returns a nested map list hint.
func MapList() Hint { return Hint{Type: NestedMapList} }

// LongText returns a free-text hint.
func LongText() Hint { return Hint{Type: FreeTextLong} }

// Money returns a price hint.
func Money() Hint { return Hint{Type: Price} }

// Secret returns a hidden hint.
func Secret() Hint { return Hint{Type: Hidden} }

// Field is one row of an entity kind's field table.
type Field struct {
	// Name is the key of the field in a captured snapshot.
	Name string

	// Label is the human-readable name shown in log details.
	Label string

	// Hint drives formatting and diff dispatch.
	Hint Hint

	// Default is used when the snapshot has no value for Name.
	Default any
}

// Value returns the field's value from a snapshot, or its default when the
// key is absent.
func (f Field) Value(state map[string]any) any {
	if state == nil {
		return f.Default
	}
	if v, ok := state[f.Name]; ok {
		return v
	}
	return f.Default
}

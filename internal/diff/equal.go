// Package diff holds the structural diff algorithms of the audit engine:
// scalar equality under normalization, order-insensitive set difference,
// flattened nested-map difference, recursive field-tree difference and the
// sampled long-text difference. Engine ties them to field type hints and the
// value formatter to produce change descriptors.
package diff

import (
	"strings"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

// Equal reports whether old and new are the same value once normalized for
// the hint type: strings are trimmed, numeric strings compare numerically,
// booleans are cast on both sides, empties (nil, "", empty collections) are
// interchangeable and collections compare by canonical JSON. Reference id 0
// means "no reference" and is empty too.
func Equal(old, new any, t changeset.HintType) bool {
	old, new = refValue(old, t), refValue(new, t)
	switch t {
	case changeset.ScalarBoolean:
		return format.Truthy(old) == format.Truthy(new)
	case changeset.ReferenceIDList, changeset.EnumeratedChoiceList, changeset.NestedMapList:
		return SetDiff(format.ToList(old), format.ToList(new), Identity).Empty()
	case changeset.Date:
		ot, ook := format.ParseTime(old)
		nt, nok := format.ParseTime(new)
		if ook && nok {
			return ot.Equal(nt)
		}
	}

	oEmpty, nEmpty := format.IsEmpty(old), format.IsEmpty(new)
	if oEmpty || nEmpty {
		return oEmpty == nEmpty
	}

	if on, ok := format.Number(old); ok {
		if nn, ok := format.Number(new); ok {
			return on == nn
		}
	}

	return canonical(old) == canonical(new)
}

// refValue drops zero reference ids so they compare as empty.
func refValue(v any, t changeset.HintType) any {
	switch t {
	case changeset.ReferenceID:
		if zeroRef(v) {
			return nil
		}
	case changeset.ReferenceIDList:
		if v == nil {
			return nil
		}
		items := format.ToList(v)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if !zeroRef(item) {
				out = append(out, item)
			}
		}
		return out
	}
	return v
}

func zeroRef(v any) bool {
	id := strings.TrimSpace(entitystore.IDString(v))
	return id == "0"
}

// canonical renders v as a comparison key: trimmed text for scalars,
// canonical JSON for collections.
func canonical(v any) string {
	switch v.(type) {
	case map[string]any, []any, []string, []int, []map[string]any:
		return format.Compact(normalize(v))
	}
	return strings.TrimSpace(format.Text(v))
}

// normalize rewrites numbers inside collections so 4 and 4.0 and "4"
// compare equal, and trims strings.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalize(x)
		}
		return out
	case string:
		s := strings.TrimSpace(t)
		if n, ok := format.Number(s); ok {
			return n
		}
		return s
	default:
		if n, ok := format.Number(v); ok {
			return n
		}
		return v
	}
}

// Identity is the default set membership key: the canonical form of the
// item, so "4", 4 and 4.0 are the same member.
func Identity(v any) string {
	return format.Compact(normalize(v))
}

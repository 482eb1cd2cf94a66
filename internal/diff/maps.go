package diff

import (
	"fmt"
	"sort"

	"github.com/keyxmakerx/audittrail/internal/changeset"
)

// PathChange is one leaf-level difference between two nested maps.
type PathChange struct {
	Path string
	Kind changeset.Kind
	Old  any
	New  any
}

// MapDiff compares two nested values leaf by leaf. Paths use dots for map
// keys and [i] for list indexes, e.g. "sizes.thumb[0].width". Results are
// sorted by path.
func MapDiff(old, new map[string]any) []PathChange {
	oldFlat := make(map[string]any)
	newFlat := make(map[string]any)
	flattenInto("", old, oldFlat)
	flattenInto("", new, newFlat)

	var out []PathChange
	for path, nv := range newFlat {
		ov, ok := oldFlat[path]
		switch {
		case !ok:
			if !isNil(nv) {
				out = append(out, PathChange{Path: path, Kind: changeset.Added, New: nv})
			}
		case !Equal(ov, nv, changeset.ScalarText):
			out = append(out, PathChange{Path: path, Kind: changeset.Modified, Old: ov, New: nv})
		}
	}
	for path, ov := range oldFlat {
		if _, ok := newFlat[path]; !ok && !isNil(ov) {
			out = append(out, PathChange{Path: path, Kind: changeset.Removed, Old: ov})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// flattenInto writes every leaf of v into out keyed by its path. Empty
// collections are leaves so that clearing a list is still visible.
func flattenInto(prefix string, v any, out map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 && prefix != "" {
			out[prefix] = t
			return
		}
		for k, x := range t {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flattenInto(p, x, out)
		}
	case []any:
		if len(t) == 0 && prefix != "" {
			out[prefix] = t
			return
		}
		for i, x := range t {
			flattenInto(fmt.Sprintf("%s[%d]", prefix, i), x, out)
		}
	default:
		if prefix != "" {
			out[prefix] = v
		}
	}
}

func isNil(v any) bool {
	return v == nil
}

// AsMap interprets v as a nested map, accepting nil as empty.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

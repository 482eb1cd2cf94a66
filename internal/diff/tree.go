package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

// PathSep joins the segments of a composite field key.
const PathSep = "/"

// Node is one field of a schema tree. Sub-fields hang off Children; flexible
// layout containers hang off Layouts, each with its own children.
type Node struct {
	Key      string
	Name     string
	Type     string
	Attrs    map[string]any
	Children []*Node
	Layouts  []*Layout
}

// Layout is a named container of fields inside a flexible field.
type Layout struct {
	Key      string
	Name     string
	Children []*Node
}

// Label returns the node's display label, falling back to its name.
func (n *Node) Label() string {
	if l, ok := n.Attrs["label"].(string); ok && strings.TrimSpace(l) != "" {
		return l
	}
	if n.Name != "" {
		return n.Name
	}
	return n.Key
}

// structural keys that are not attributes.
var nodeKeys = map[string]bool{
	"key": true, "name": true, "type": true, "sub_fields": true, "layouts": true,
}

// NodesFromMaps converts decoded field definitions into nodes. Each item is
// a map carrying key, name, type, optional sub_fields and layouts; every
// other entry becomes an attribute. Items that are not maps are skipped.
func NodesFromMaps(v any) []*Node {
	items, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			items = orderedValues(m)
		}
	}

	nodes := make([]*Node, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		n := &Node{
			Key:   entitystore.IDString(m["key"]),
			Name:  entitystore.IDString(m["name"]),
			Type:  entitystore.IDString(m["type"]),
			Attrs: make(map[string]any),
		}
		for k, x := range m {
			if !nodeKeys[k] {
				n.Attrs[k] = x
			}
		}
		n.Children = NodesFromMaps(m["sub_fields"])
		for _, lv := range asItems(m["layouts"]) {
			lm, ok := lv.(map[string]any)
			if !ok {
				continue
			}
			n.Layouts = append(n.Layouts, &Layout{
				Key:      entitystore.IDString(lm["key"]),
				Name:     entitystore.IDString(lm["name"]),
				Children: NodesFromMaps(lm["sub_fields"]),
			})
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func asItems(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return orderedValues(t)
	}
	return nil
}

// orderedValues returns a map's values ordered by key; layouts are often
// stored keyed by their own key.
func orderedValues(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// FlatNode is a node addressed by its composite key.
type FlatNode struct {
	Path string
	Node *Node
}

// Flatten walks the tree depth first. A child of a sub-field collection is
// addressed as parent/child, a child of a layout as parent/layout/child, so
// a field three layout levels deep gets a key as addressable as a top-level
// one. When byIdentity is set, segments use name:type:position instead of
// the stored key.
func Flatten(nodes []*Node, byIdentity bool) []FlatNode {
	var out []FlatNode
	flattenNodes("", nodes, byIdentity, &out)
	return out
}

func flattenNodes(prefix string, nodes []*Node, byIdentity bool, out *[]FlatNode) {
	for i, n := range nodes {
		seg := n.Key
		if byIdentity || seg == "" {
			seg = fmt.Sprintf("%s:%s:%d", n.Name, n.Type, i)
		}
		path := join(prefix, seg)
		*out = append(*out, FlatNode{Path: path, Node: n})

		flattenNodes(path, n.Children, byIdentity, out)
		for _, l := range n.Layouts {
			name := l.Name
			if name == "" {
				name = l.Key
			}
			flattenNodes(join(path, name), l.Children, byIdentity, out)
		}
	}
}

func join(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + PathSep + seg
}

// KeysStable reports whether old and new trees share at least one field key.
// Trees whose keys were all regenerated between captures share none; an
// empty side is trivially stable.
func KeysStable(old, new []*Node) bool {
	oldFlat := Flatten(old, false)
	newFlat := Flatten(new, false)
	if len(oldFlat) == 0 || len(newFlat) == 0 {
		return true
	}
	keys := make(map[string]bool, len(oldFlat))
	for _, f := range oldFlat {
		keys[f.Node.Key] = true
	}
	for _, f := range newFlat {
		if f.Node.Key != "" && keys[f.Node.Key] {
			return true
		}
	}
	return false
}

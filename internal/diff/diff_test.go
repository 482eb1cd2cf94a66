package diff

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/format"
)

// --- Mock Resolver ---

type mockResolver struct {
	labels map[string]map[string]string
}

func (m *mockResolver) Resolve(_ context.Context, kind string, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if l, ok := m.labels[kind][id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func newTestEngine() *Engine {
	r := &mockResolver{labels: map[string]map[string]string{
		"term": {"1": "News", "2": "Sports", "3": "Weather", "4": "Culture"},
	}}
	return NewEngine(format.New(r))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		old  any
		new  any
		hint changeset.HintType
		want bool
	}{
		{"trimmed strings", " Hello ", "Hello", changeset.ScalarText, true},
		{"numeric strings", "10", "10.0", changeset.ScalarNumber, true},
		{"number vs string", float64(4), "4", changeset.ScalarText, true},
		{"bool cast", "1", true, changeset.ScalarBoolean, true},
		{"bool differs", "0", true, changeset.ScalarBoolean, false},
		{"nil vs empty", nil, "", changeset.ScalarText, true},
		{"empty vs value", "", "x", changeset.ScalarText, false},
		{"list order", []any{"1", "2"}, []any{float64(2), float64(1)}, changeset.ReferenceIDList, true},
		{"map canonical", map[string]any{"a": 1, "b": "2"}, map[string]any{"b": 2, "a": "1"}, changeset.NestedMap, true},
		{"dates", "2026-01-02 03:04:05", "2026-01-02T03:04:05Z", changeset.Date, true},
		{"text differs", "Hello", "Hello World", changeset.ScalarText, false},
		{"zero reference vs nil", float64(0), nil, changeset.ReferenceID, true},
		{"zero string reference vs nil", "0", nil, changeset.ReferenceID, true},
		{"zero reference vs id", "0", float64(5), changeset.ReferenceID, false},
		{"zero ids in list", []any{"0", "1"}, []any{float64(1)}, changeset.ReferenceIDList, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.old, tt.new, tt.hint); got != tt.want {
				t.Errorf("Equal(%#v, %#v) = %v, want %v", tt.old, tt.new, got, tt.want)
			}
		})
	}
}

func TestSetDiff_TaxonomyAssignment(t *testing.T) {
	res := SetDiff([]any{1, 2, 3}, []any{2, 3, 4}, nil)
	require.Equal(t, []any{4}, res.Added)
	require.Equal(t, []any{1}, res.Removed)
}

func TestSetDiff_OrderAndDuplicatesIgnored(t *testing.T) {
	res := SetDiff([]any{"a", "b", "b"}, []any{"b", "a", "a"}, nil)
	require.True(t, res.Empty())
}

func TestSetDiff_Symmetry(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	randomSet := func() []any {
		n := rng.Intn(8)
		out := make([]any, n)
		for i := range out {
			out[i] = rng.Intn(10)
		}
		return out
	}

	for i := 0; i < 200; i++ {
		a, b := randomSet(), randomSet()
		ab := SetDiff(a, b, nil)
		ba := SetDiff(b, a, nil)
		require.ElementsMatch(t, ab.Added, ba.Removed, "a=%v b=%v", a, b)
		require.ElementsMatch(t, ab.Removed, ba.Added, "a=%v b=%v", a, b)
	}
}

func TestStringSetDiff(t *testing.T) {
	added, removed := StringSetDiff([]string{"editor", "author"}, []string{"administrator", "author"})
	require.Equal(t, []string{"administrator"}, added)
	require.Equal(t, []string{"editor"}, removed)
}

func TestMapDiff(t *testing.T) {
	old := map[string]any{
		"width": 100,
		"sizes": map[string]any{"thumb": map[string]any{"w": 150}},
		"tags":  []any{"a", "b"},
		"gone":  "x",
	}
	new := map[string]any{
		"width": "100",
		"sizes": map[string]any{"thumb": map[string]any{"w": 300}},
		"tags":  []any{"a"},
		"added": true,
	}

	got := MapDiff(old, new)
	paths := make([]string, len(got))
	for i, c := range got {
		paths[i] = fmt.Sprintf("%s:%s", c.Path, c.Kind)
	}
	require.Equal(t, []string{
		"added:added",
		"gone:removed",
		"sizes.thumb.w:modified",
		"tags[1]:removed",
	}, paths)
}

func TestLongText_Full(t *testing.T) {
	old := "First line\nSecond line\nThird line"
	new := "First line\nSecond line changed\nThird line\nFourth line"

	d := LongText(old, new)
	require.False(t, d.Summarized)
	require.Equal(t, 2, d.LinesAdded)
	require.Equal(t, 1, d.LinesRemoved)
	require.Contains(t, d.WordsAdded, "changed")
	require.Contains(t, d.WordsAdded, "Fourth")
	require.Empty(t, d.WordsRemoved)
	require.True(t, d.Changed())
}

func TestLongText_WordSampleCapped(t *testing.T) {
	var words []string
	for i := 0; i < 40; i++ {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	d := LongText("", strings.Join(words, " "))
	require.Len(t, d.WordsAdded, SampleWords)
	require.Equal(t, "w0", d.WordsAdded[0])
}

func TestLongText_Summarized(t *testing.T) {
	body := strings.Repeat("lorem ipsum ", 1000)
	old := "HEAD " + body + " TAIL"
	new := "HEAD " + body + " NEW TAIL"

	d := LongText(old, new)
	require.True(t, d.Summarized)
	require.False(t, d.HeadChanged)
	require.True(t, d.TailChanged)
	require.Equal(t, 4, d.LengthDelta)
	require.Zero(t, d.LinesAdded)
	require.NotContains(t, d.Detail(), "words_added")
}

func TestEngine_CompareScalar(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	title := changeset.Field{Name: "title", Label: "Title", Hint: changeset.Text()}

	c := e.Compare(ctx, title, "Hello", "Hello World")
	require.Equal(t, changeset.Modified, c.Kind)
	require.Equal(t, "Hello", c.Old)
	require.Equal(t, "Hello World", c.New)

	c = e.Compare(ctx, title, "Hello", " Hello ")
	require.False(t, c.IsChange())

	c = e.Compare(ctx, title, "", "Hello")
	require.Equal(t, changeset.Added, c.Kind)
	require.Equal(t, format.Empty, c.Old)
}

func TestEngine_CompareBoolean(t *testing.T) {
	e := newTestEngine()
	f := changeset.Field{Name: "sticky", Label: "Sticky", Hint: changeset.Bool()}

	c := e.Compare(context.Background(), f, true, false)
	require.Equal(t, changeset.Modified, c.Kind)
	require.Equal(t, "Yes", c.Old)
	require.Equal(t, "No", c.New)

	require.False(t, e.Compare(context.Background(), f, "1", true).IsChange())
}

func TestEngine_CompareReferenceList(t *testing.T) {
	e := newTestEngine()
	f := changeset.Field{Name: "category", Label: "Categories", Hint: changeset.RefList("term")}

	c := e.Compare(context.Background(), f, []any{"1", "2", "3"}, []any{float64(2), float64(3), float64(4)})
	require.Equal(t, changeset.Modified, c.Kind)
	require.Equal(t, []string{"Culture"}, c.Added)
	require.Equal(t, []string{"News"}, c.Removed)
	require.Empty(t, c.Old)
}

func TestEngine_CompareZeroReference(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	parent := changeset.Field{Name: "parent", Label: "Parent", Hint: changeset.Ref("term")}

	require.False(t, e.Compare(ctx, parent, float64(0), nil).IsChange())
	require.False(t, e.Compare(ctx, parent, "0", "").IsChange())

	c := e.Compare(ctx, parent, float64(0), float64(1))
	require.Equal(t, changeset.Added, c.Kind)
	require.Equal(t, format.Empty, c.Old)
	require.Equal(t, "News", c.New)
}

func TestEngine_CompareHidden(t *testing.T) {
	e := newTestEngine()
	f := changeset.Field{Name: "password", Label: "Password", Hint: changeset.Secret()}

	c := e.Compare(context.Background(), f, "$hash1", "$hash2")
	require.Equal(t, format.HiddenValue, c.Old)
	require.Equal(t, ChangedValue, c.New)
	require.NotContains(t, c.Old+c.New, "hash")
}

func TestEngine_CompareNestedMap(t *testing.T) {
	e := newTestEngine()
	f := changeset.Field{Name: "meta", Label: "Metadata", Hint: changeset.Map()}

	c := e.Compare(context.Background(), f,
		map[string]any{"width": 100, "height": 50},
		map[string]any{"width": 200, "height": 50},
	)
	require.Equal(t, changeset.Modified, c.Kind)
	require.Len(t, c.Children, 1)
	require.Equal(t, "width", c.Children[0].Field)
	require.Equal(t, "100", c.Children[0].Old)
	require.Equal(t, "200", c.Children[0].New)
}

func TestEngine_CompareLongText(t *testing.T) {
	e := newTestEngine()
	f := changeset.Field{Name: "content", Label: "Content", Hint: changeset.LongText()}

	c := e.Compare(context.Background(), f, "<p>Old body</p>", "<p>New body</p>")
	require.Equal(t, changeset.Modified, c.Kind)
	require.Equal(t, "Old body", c.Old)
	require.Equal(t, "New body", c.New)
	require.Equal(t, 0, c.Detail["length_delta"])
	require.Equal(t, []string{"New"}, c.Detail["words_added"])
}

// deepTree builds field -> layout -> field -> layout -> field -> layout -> leaf.
func deepTree(leafLabel string) []*Node {
	leaf := &Node{Key: "field_leaf", Name: "leaf", Type: "text", Attrs: map[string]any{"label": leafLabel, "required": false}}
	sibling := &Node{Key: "field_sibling", Name: "sibling", Type: "text", Attrs: map[string]any{"label": "Sibling"}}
	level3 := &Node{Key: "field_l3", Name: "l3", Type: "flexible_content", Attrs: map[string]any{"label": "Level 3"},
		Layouts: []*Layout{{Key: "layout_c", Name: "block_c", Children: []*Node{leaf, sibling}}}}
	level2 := &Node{Key: "field_l2", Name: "l2", Type: "flexible_content", Attrs: map[string]any{"label": "Level 2"},
		Layouts: []*Layout{{Key: "layout_b", Name: "block_b", Children: []*Node{level3}}}}
	level1 := &Node{Key: "field_l1", Name: "l1", Type: "flexible_content", Attrs: map[string]any{"label": "Level 1"},
		Layouts: []*Layout{{Key: "layout_a", Name: "block_a", Children: []*Node{level2}}}}
	top := &Node{Key: "field_top", Name: "top", Type: "text", Attrs: map[string]any{"label": "Top"}}
	return []*Node{top, level1}
}

func TestCompareTree_DeepLayoutChange(t *testing.T) {
	e := newTestEngine()
	attrs := []changeset.Field{{Name: "label", Label: "Label", Hint: changeset.Text()}}

	cs := e.CompareTree(context.Background(), deepTree("Old label"), deepTree("New label"), attrs)

	require.Equal(t, 1, cs.Len())
	path := "field_l1/block_a/field_l2/block_b/field_l3/block_c/field_leaf"
	c, ok := cs.Find(path, "label")
	require.True(t, ok, "sections = %v", cs.Fields())
	require.Equal(t, "Old label", c.Old)
	require.Equal(t, "New label", c.New)
}

func TestCompareTree_NoChange(t *testing.T) {
	e := newTestEngine()
	cs := e.CompareTree(context.Background(), deepTree("Same"), deepTree("Same"), nil)
	require.True(t, cs.IsEmpty())
}

func TestCompareTree_AddedAndRemoved(t *testing.T) {
	e := newTestEngine()
	old := []*Node{
		{Key: "field_a", Name: "a", Type: "text", Attrs: map[string]any{"label": "A"}},
		{Key: "field_b", Name: "b", Type: "image", Attrs: map[string]any{"label": "B"}},
	}
	new := []*Node{
		{Key: "field_a", Name: "a", Type: "text", Attrs: map[string]any{"label": "A"}},
		{Key: "field_c", Name: "c", Type: "number", Attrs: map[string]any{"label": "C"}},
	}

	cs := e.CompareTree(context.Background(), old, new, nil)
	require.Equal(t, 2, cs.Len())

	added, ok := cs.Find("field_c", "field")
	require.True(t, ok)
	require.Equal(t, changeset.Added, added.Kind)
	require.Equal(t, "C (number)", added.New)

	removed, ok := cs.Find("field_b", "field")
	require.True(t, ok)
	require.Equal(t, changeset.Removed, removed.Kind)
	require.Equal(t, "B (image)", removed.Old)
}

func TestCompareTree_RegeneratedKeys(t *testing.T) {
	e := newTestEngine()
	old := []*Node{
		{Key: "field_111", Name: "price", Type: "number", Attrs: map[string]any{"label": "Price"}},
		{Key: "field_222", Name: "color", Type: "select", Attrs: map[string]any{"label": "Color"}},
	}
	new := []*Node{
		{Key: "field_999", Name: "price", Type: "number", Attrs: map[string]any{"label": "Price (USD)"}},
		{Key: "field_888", Name: "color", Type: "select", Attrs: map[string]any{"label": "Color"}},
	}

	require.False(t, KeysStable(old, new))
	cs := e.CompareTree(context.Background(), old, new, nil)

	// Matched by name, type and position: one label change, nothing added
	// or removed.
	require.Equal(t, 1, cs.Len())
	c, ok := cs.Find("price:number:0", "label")
	require.True(t, ok)
	require.Equal(t, "Price (USD)", c.New)
}

func TestNodesFromMaps(t *testing.T) {
	raw := []any{
		map[string]any{
			"key": "field_1", "name": "gallery", "type": "repeater", "label": "Gallery",
			"sub_fields": []any{
				map[string]any{"key": "field_2", "name": "image", "type": "image"},
			},
		},
		map[string]any{
			"key": "field_3", "name": "blocks", "type": "flexible_content",
			"layouts": map[string]any{
				"layout_x": map[string]any{"key": "layout_x", "name": "hero", "sub_fields": []any{
					map[string]any{"key": "field_4", "name": "heading", "type": "text"},
				}},
			},
		},
		"not a field",
	}

	nodes := NodesFromMaps(raw)
	require.Len(t, nodes, 2)
	require.Equal(t, "Gallery", nodes[0].Label())
	require.NotContains(t, nodes[0].Attrs, "sub_fields")

	var paths []string
	for _, f := range Flatten(nodes, false) {
		paths = append(paths, f.Path)
	}
	require.Equal(t, []string{
		"field_1",
		"field_1/field_2",
		"field_3",
		"field_3/hero/field_4",
	}, paths)
}

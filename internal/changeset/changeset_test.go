package changeset

import (
	"encoding/json"
	"testing"
)

func TestAdd_DropsNoChange(t *testing.T) {
	cs := New()
	cs.Add("basic", Change{Field: "title", Kind: NoChange})
	cs.Add("basic", Change{Field: "slug"})

	if !cs.IsEmpty() {
		t.Fatalf("expected empty change set, got %d changes", cs.Len())
	}
	if len(cs.Sections()) != 0 {
		t.Errorf("Sections() = %v, want none", cs.Sections())
	}
}

func TestAdd_ReplacesSameField(t *testing.T) {
	cs := New()
	cs.Add("basic", Change{Field: "title", Kind: Modified, Old: "a", New: "b"})
	cs.Add("basic", Change{Field: "title", Kind: Modified, Old: "a", New: "c"})

	if cs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cs.Len())
	}
	c, ok := cs.Find("basic", "title")
	if !ok || c.New != "c" {
		t.Errorf("Find = %+v, %v", c, ok)
	}
}

func TestNilChangeSet(t *testing.T) {
	var cs *ChangeSet
	if !cs.IsEmpty() || cs.Len() != 0 || len(cs.Fields()) != 0 {
		t.Error("nil change set should read as empty")
	}
}

func TestMarshalJSON_Scalar(t *testing.T) {
	cs := New()
	cs.Add("basic", Change{Field: "title", Label: "Title", Kind: Modified, Old: "Hello", New: "Hello World"})

	got, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"basic":{"title":{"label":"Title","change":"modified","old":"Hello","new":"Hello World"}}}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestMarshalJSON_SetAndOrder(t *testing.T) {
	cs := New()
	cs.Add("taxonomies", Change{Field: "category", Label: "Categories", Kind: Modified, Added: []string{"4"}, Removed: []string{"1"}})
	cs.Add("basic", Change{Field: "status", Label: "Status", Kind: Modified, Old: "Draft", New: "Published"})

	got, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"taxonomies":{"category":{"label":"Categories","change":"modified","added":["4"],"removed":["1"]}},` +
		`"basic":{"status":{"label":"Status","change":"modified","old":"Draft","new":"Published"}}}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestMarshalJSON_Nested(t *testing.T) {
	fields := New()
	fields.Add("field_1/hero/field_4", Change{Field: "label", Label: "Label", Kind: Modified, Old: "A", New: "B"})

	cs := New()
	cs.AddNested("fields", fields)
	cs.AddNested("empty", New())

	got, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"fields":{"field_1/hero/field_4":{"label":{"label":"Label","change":"modified","old":"A","new":"B"}}}}`
	if string(got) != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
	if cs.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cs.Len())
	}
}

func TestFields(t *testing.T) {
	nested := New()
	nested.Add("field_x", Change{Field: "label", Kind: Modified})

	cs := New()
	cs.Add("basic", Change{Field: "title", Kind: Modified})
	cs.Add("commerce", Change{Field: "price", Kind: Modified})
	cs.AddNested("fields", nested)

	got := cs.Fields()
	want := []string{"label", "price", "title"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

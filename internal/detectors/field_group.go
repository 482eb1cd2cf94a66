package detectors

import (
	"context"
	"sort"
	"strings"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/diff"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

var fieldGroupPositionLabels = map[string]string{
	"acf_after_title": "High (after title)",
	"normal":          "Normal (after content)",
	"side":            "Side",
}

var fieldGroupStyleLabels = map[string]string{
	"default":  "Standard (WP metabox)",
	"seamless": "Seamless (no metabox)",
}

var placementLabels = map[string]string{
	"top":   "Top aligned",
	"left":  "Left aligned",
	"label": "Below labels",
	"field": "Below fields",
}

var hideOnScreenLabels = map[string]string{
	"permalink":       "Permalink",
	"the_content":     "Content Editor",
	"excerpt":         "Excerpt",
	"discussion":      "Discussion",
	"comments":        "Comments",
	"revisions":       "Revisions",
	"slug":            "Slug",
	"author":          "Author",
	"format":          "Format",
	"page_attributes": "Page Attributes",
	"featured_image":  "Featured Image",
	"categories":      "Categories",
	"tags":            "Tags",
	"send-trackbacks": "Send Trackbacks",
}

var fieldGroupBasicFields = []changeset.Field{
	{Name: "title", Label: "Title", Hint: changeset.Text()},
	{Name: "active", Label: "Active", Hint: changeset.Bool(), Default: true},
	{Name: "position", Label: "Position", Hint: changeset.Choice(fieldGroupPositionLabels)},
	{Name: "style", Label: "Style", Hint: changeset.Choice(fieldGroupStyleLabels)},
	{Name: "label_placement", Label: "Label Placement", Hint: changeset.Choice(placementLabels)},
	{Name: "instruction_placement", Label: "Instruction Placement", Hint: changeset.Choice(placementLabels)},
	{Name: "menu_order", Label: "Order No.", Hint: changeset.Number(), Default: 0},
	{Name: "description", Label: "Description", Hint: changeset.Text()},
}

// fieldAttrs are the field settings diffed with their own labels; any other
// setting is compared under its raw name.
var fieldAttrs = []changeset.Field{
	{Name: "label", Label: "Label", Hint: changeset.Text()},
	{Name: "instructions", Label: "Instructions", Hint: changeset.Text()},
	{Name: "required", Label: "Required", Hint: changeset.Bool()},
	{Name: "default_value", Label: "Default Value", Hint: changeset.Text()},
	{Name: "placeholder", Label: "Placeholder", Hint: changeset.Text()},
	{Name: "choices", Label: "Choices", Hint: changeset.Map()},
	{Name: "conditional_logic", Label: "Conditional Logic", Hint: changeset.Map()},
	{Name: "wrapper", Label: "Wrapper Attributes", Hint: changeset.Map()},
}

// fieldIgnore are storage details that change on every save.
var fieldIgnore = []string{"ID", "id", "parent", "menu_order", "_name", "_valid", "prefix", "value", "_i"}

func fieldGroupDefinition() Definition {
	return Definition{
		Kind: entitystore.KindFieldGroup,
		Sections: []Section{
			{Name: SectionBasic, Fields: fieldGroupBasicFields},
			{Name: "presentation", Fields: []changeset.Field{
				{Name: "hide_on_screen", Label: "Hide on Screen", Hint: changeset.ChoiceList(hideOnScreenLabels)},
			}},
		},
		Summary: []changeset.Field{
			{Name: "title", Label: "Title", Hint: changeset.Text()},
			{Name: "key", Label: "Key", Hint: changeset.Text()},
			{Name: "active", Label: "Active", Hint: changeset.Bool(), Default: true},
		},
		Extra: fieldGroupExtra,
	}
}

// fieldGroupExtra diffs location rules as a set of rule groups and the
// field definitions as a tree.
func fieldGroupExtra(ctx context.Context, e *diff.Engine, old, new map[string]any, cs *changeset.ChangeSet) {
	if c := compareLocation(old["location"], new["location"]); c.IsChange() {
		cs.Add("location", c)
	}

	tree := e.CompareTree(ctx,
		diff.NodesFromMaps(old["fields"]),
		diff.NodesFromMaps(new["fields"]),
		fieldAttrs,
		fieldIgnore...,
	)
	cs.AddNested("fields", tree)
}

// compareLocation set-diffs location rule groups. Groups are OR-ed, rules
// inside a group AND-ed, so neither order is significant.
func compareLocation(old, new any) changeset.Change {
	c := changeset.Change{Field: "rules", Label: "Location Rules", Kind: changeset.NoChange}

	res := diff.SetDiff(format.ToList(old), format.ToList(new), ruleGroupKey)
	if res.Empty() {
		return c
	}
	for _, g := range res.Added {
		c.Added = append(c.Added, ruleGroupKey(g))
	}
	for _, g := range res.Removed {
		c.Removed = append(c.Removed, ruleGroupKey(g))
	}
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

// ruleGroupKey renders a rule group as its sorted "param operator value"
// rules joined by AND.
func ruleGroupKey(group any) string {
	var rules []string
	for _, r := range format.ToList(group) {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		rules = append(rules, strings.TrimSpace(strings.Join([]string{
			format.Text(m["param"]),
			format.Text(m["operator"]),
			format.Text(m["value"]),
		}, " ")))
	}
	sort.Strings(rules)
	return strings.Join(rules, " AND ")
}

package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

var postStatusLabels = map[string]string{
	"publish":    "Published",
	"draft":      "Draft",
	"pending":    "Pending Review",
	"private":    "Private",
	"future":     "Scheduled",
	"trash":      "Trash",
	"auto-draft": "Auto Draft",
	"inherit":    "Inherit",
}

var openClosedLabels = map[string]string{
	"open":   "Open",
	"closed": "Closed",
}

var stockStatusLabels = map[string]string{
	"instock":     "In Stock",
	"outofstock":  "Out of Stock",
	"onbackorder": "On Backorder",
}

var visibilityLabels = map[string]string{
	"visible": "Shop and search results",
	"catalog": "Shop only",
	"search":  "Search results only",
	"hidden":  "Hidden",
}

var postBasicFields = []changeset.Field{
	{Name: "title", Label: "Title", Hint: changeset.Text()},
	{Name: "slug", Label: "Slug", Hint: changeset.Text()},
	{Name: "status", Label: "Status", Hint: changeset.Choice(postStatusLabels)},
	{Name: "type", Label: "Type", Hint: changeset.Text()},
	{Name: "author", Label: "Author", Hint: changeset.Ref(entitystore.KindUser)},
	{Name: "date", Label: "Publish Date", Hint: changeset.When()},
	{Name: "parent", Label: "Parent", Hint: changeset.Ref(entitystore.KindPost)},
	{Name: "menu_order", Label: "Menu Order", Hint: changeset.Number(), Default: 0},
	{Name: "template", Label: "Template", Hint: changeset.Text()},
	{Name: "comment_status", Label: "Comments", Hint: changeset.Choice(openClosedLabels)},
	{Name: "ping_status", Label: "Pingbacks", Hint: changeset.Choice(openClosedLabels)},
	{Name: "password", Label: "Password", Hint: changeset.Secret()},
	{Name: "sticky", Label: "Sticky", Hint: changeset.Bool(), Default: false},
	{Name: "format", Label: "Format", Hint: changeset.Choice(nil), Default: "standard"},
	{Name: "featured_image", Label: "Featured Image", Hint: changeset.Ref(entitystore.KindMedia)},
}

var postContentFields = []changeset.Field{
	{Name: "excerpt", Label: "Excerpt", Hint: changeset.Text()},
	{Name: "content", Label: "Content", Hint: changeset.LongText()},
}

var postCommerceFields = []changeset.Field{
	{Name: "price", Label: "Price", Hint: changeset.Money()},
	{Name: "regular_price", Label: "Regular Price", Hint: changeset.Money()},
	{Name: "sale_price", Label: "Sale Price", Hint: changeset.Money()},
	{Name: "sku", Label: "SKU", Hint: changeset.Text()},
	{Name: "stock", Label: "Stock", Hint: changeset.Number()},
	{Name: "stock_status", Label: "Stock Status", Hint: changeset.Choice(stockStatusLabels)},
	{Name: "visibility", Label: "Catalog Visibility", Hint: changeset.Choice(visibilityLabels)},
}

func postDefinition() Definition {
	return Definition{
		Kind: entitystore.KindPost,
		Sections: []Section{
			{Name: SectionBasic, Fields: postBasicFields},
			{Name: "content", Fields: postContentFields},
			{Name: "commerce", Fields: postCommerceFields},
		},
		Relations: []Relation{
			{Name: "category", Label: "Categories", Kind: entitystore.KindTerm},
			{Name: "post_tag", Label: "Tags", Kind: entitystore.KindTerm},
			{Name: "product_cat", Label: "Product Categories", Kind: entitystore.KindTerm},
		},
		RelationSection: "taxonomies",
		Summary: []changeset.Field{
			{Name: "title", Label: "Title", Hint: changeset.Text()},
			{Name: "type", Label: "Type", Hint: changeset.Text()},
			{Name: "status", Label: "Status", Hint: changeset.Choice(postStatusLabels)},
			{Name: "author", Label: "Author", Hint: changeset.Ref(entitystore.KindUser)},
		},
		Action: postAction,
	}
}

// postAction names status transitions that matter more than an edit.
func postAction(old, new map[string]any, _ *changeset.ChangeSet) string {
	from := format.Text(old["status"])
	to := format.Text(new["status"])
	if from == to {
		return ""
	}
	switch {
	case to == "trash":
		return action(entitystore.KindPost, "trashed")
	case from == "trash":
		return action(entitystore.KindPost, "restored")
	case to == "publish":
		return action(entitystore.KindPost, "published")
	}
	return ""
}

package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

func termDefinition() Definition {
	return Definition{
		Kind: entitystore.KindTerm,
		Sections: []Section{
			{Name: SectionBasic, Fields: []changeset.Field{
				{Name: "name", Label: "Name", Hint: changeset.Text()},
				{Name: "slug", Label: "Slug", Hint: changeset.Text()},
				{Name: "taxonomy", Label: "Taxonomy", Hint: changeset.Text()},
				{Name: "description", Label: "Description", Hint: changeset.LongText()},
				{Name: "parent", Label: "Parent", Hint: changeset.Ref(entitystore.KindTerm)},
			}},
		},
	}
}

package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

func mediaDefinition() Definition {
	return Definition{
		Kind: entitystore.KindMedia,
		Sections: []Section{
			{Name: SectionBasic, Fields: []changeset.Field{
				{Name: "title", Label: "Title", Hint: changeset.Text()},
				{Name: "caption", Label: "Caption", Hint: changeset.Text()},
				{Name: "description", Label: "Description", Hint: changeset.LongText()},
				{Name: "alt_text", Label: "Alternative Text", Hint: changeset.Text()},
				{Name: "author", Label: "Uploaded By", Hint: changeset.Ref(entitystore.KindUser)},
				{Name: "parent", Label: "Uploaded To", Hint: changeset.Ref(entitystore.KindPost)},
			}},
			{Name: "file", Fields: []changeset.Field{
				{Name: "filename", Label: "File Name", Hint: changeset.Text()},
				{Name: "mime_type", Label: "File Type", Hint: changeset.Text()},
				{Name: "file_size", Label: "File Size", Hint: changeset.Number()},
				{Name: "dimensions", Label: "Dimensions", Hint: changeset.Map()},
			}},
		},
		Summary: []changeset.Field{
			{Name: "title", Label: "Title", Hint: changeset.Text()},
			{Name: "filename", Label: "File Name", Hint: changeset.Text()},
			{Name: "mime_type", Label: "File Type", Hint: changeset.Text()},
		},
	}
}

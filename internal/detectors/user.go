package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

var roleLabels = map[string]string{
	"administrator": "Administrator",
	"editor":        "Editor",
	"author":        "Author",
	"contributor":   "Contributor",
	"subscriber":    "Subscriber",
	"shop_manager":  "Shop Manager",
	"customer":      "Customer",
}

func userDefinition() Definition {
	return Definition{
		Kind: entitystore.KindUser,
		Sections: []Section{
			{Name: SectionBasic, Fields: []changeset.Field{
				{Name: "login", Label: "Username", Hint: changeset.Text()},
				{Name: "email", Label: "Email", Hint: changeset.Text()},
				{Name: "display_name", Label: "Display Name", Hint: changeset.Text()},
				{Name: "first_name", Label: "First Name", Hint: changeset.Text()},
				{Name: "last_name", Label: "Last Name", Hint: changeset.Text()},
				{Name: "nickname", Label: "Nickname", Hint: changeset.Text()},
				{Name: "url", Label: "Website", Hint: changeset.Text()},
				{Name: "locale", Label: "Language", Hint: changeset.Text()},
				{Name: "description", Label: "Biographical Info", Hint: changeset.LongText()},
			}},
			{Name: "access", Fields: []changeset.Field{
				{Name: "roles", Label: "Roles", Hint: changeset.ChoiceList(roleLabels)},
				{Name: "password", Label: "Password", Hint: changeset.Secret()},
			}},
		},
		Summary: []changeset.Field{
			{Name: "login", Label: "Username", Hint: changeset.Text()},
			{Name: "email", Label: "Email", Hint: changeset.Text()},
			{Name: "roles", Label: "Roles", Hint: changeset.ChoiceList(roleLabels)},
		},
		Action: userAction,
	}
}

// userAction singles out role and password changes.
func userAction(_, _ map[string]any, cs *changeset.ChangeSet) string {
	if _, ok := cs.Find("access", "roles"); ok {
		return action(entitystore.KindUser, "role_changed")
	}
	if _, ok := cs.Find("access", "password"); ok {
		return action(entitystore.KindUser, "password_changed")
	}
	return ""
}

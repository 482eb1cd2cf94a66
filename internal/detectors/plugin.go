package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/format"
)

var pluginFields = []changeset.Field{
	{Name: "name", Label: "Name", Hint: changeset.Text()},
	{Name: "version", Label: "Version", Hint: changeset.Text()},
	{Name: "author", Label: "Author", Hint: changeset.Text()},
	{Name: "active", Label: "Active", Hint: changeset.Bool(), Default: false},
	{Name: "network_active", Label: "Network Active", Hint: changeset.Bool(), Default: false},
	{Name: "auto_update", Label: "Auto Updates", Hint: changeset.Bool(), Default: false},
}

func pluginDefinition() Definition {
	return Definition{
		Kind:          entitystore.KindPlugin,
		Sections:      []Section{{Name: SectionBasic, Fields: pluginFields}},
		Action:        pluginAction,
		CreatedAction: action(entitystore.KindPlugin, "installed"),
	}
}

// pluginAction reports activation before version changes: activating a
// freshly updated plugin is logged as the activation.
func pluginAction(old, new map[string]any, _ *changeset.ChangeSet) string {
	wasActive, isActive := format.Truthy(old["active"]), format.Truthy(new["active"])
	switch {
	case !wasActive && isActive:
		return action(entitystore.KindPlugin, "activated")
	case wasActive && !isActive:
		return action(entitystore.KindPlugin, "deactivated")
	case format.Text(old["version"]) != format.Text(new["version"]):
		return action(entitystore.KindPlugin, "updated")
	}
	return ""
}

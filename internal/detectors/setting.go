package detectors

import (
	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
)

// Each setting is its own entity, identified by the option name, with the
// option's value under "value".

var roleChoice = changeset.Choice(roleLabels)

var weekdayLabels = map[string]string{
	"0": "Sunday", "1": "Monday", "2": "Tuesday", "3": "Wednesday",
	"4": "Thursday", "5": "Friday", "6": "Saturday",
}

// knownSettings maps option names to their label and hint.
var knownSettings = map[string]changeset.Field{
	"blogname":               {Label: "Site Title", Hint: changeset.Text()},
	"blogdescription":        {Label: "Tagline", Hint: changeset.Text()},
	"siteurl":                {Label: "WordPress Address (URL)", Hint: changeset.Text()},
	"home":                   {Label: "Site Address (URL)", Hint: changeset.Text()},
	"admin_email":            {Label: "Administration Email Address", Hint: changeset.Text()},
	"users_can_register":     {Label: "Anyone Can Register", Hint: changeset.Bool()},
	"default_role":           {Label: "New User Default Role", Hint: roleChoice},
	"timezone_string":        {Label: "Timezone", Hint: changeset.Text()},
	"date_format":            {Label: "Date Format", Hint: changeset.Text()},
	"time_format":            {Label: "Time Format", Hint: changeset.Text()},
	"start_of_week":          {Label: "Week Starts On", Hint: changeset.Choice(weekdayLabels)},
	"posts_per_page":         {Label: "Blog Pages Show At Most", Hint: changeset.Number()},
	"blog_public":            {Label: "Search Engine Visibility", Hint: changeset.Bool()},
	"default_comment_status": {Label: "Allow Comments On New Posts", Hint: changeset.Choice(openClosedLabels)},
	"permalink_structure":    {Label: "Permalink Structure", Hint: changeset.Text()},
}

// SettingLabel returns the display label of an option.
func SettingLabel(name string) string {
	if f, ok := knownSettings[name]; ok {
		return f.Label
	}
	return name
}

func settingDefinition() Definition {
	return Definition{
		Kind:        entitystore.KindSetting,
		SectionsFor: settingSections,
		Label:       func(id string, _ map[string]any) string { return SettingLabel(id) },
	}
}

// settingSections builds the one-field table of an option. Unknown options
// holding maps are diffed key by key.
func settingSections(id string, old, new map[string]any) []Section {
	f, ok := knownSettings[id]
	if !ok {
		f = changeset.Field{Label: id, Hint: changeset.Text()}
		_, oldMap := old["value"].(map[string]any)
		_, newMap := new["value"].(map[string]any)
		if oldMap || newMap {
			f.Hint = changeset.Map()
		}
	}
	f.Name = "value"
	return []Section{{Name: id, Fields: []changeset.Field{f}}}
}

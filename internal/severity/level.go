// Package severity classifies audit records into the eight syslog levels.
package severity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is an RFC 5424 severity. Lower values are more severe.
type Level int

const (
	Emergency Level = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
)

var levelNames = [...]string{
	Emergency: "emergency",
	Alert:     "alert",
	Critical:  "critical",
	Error:     "error",
	Warning:   "warning",
	Notice:    "notice",
	Info:      "info",
	Debug:     "debug",
}

// Levels lists every level from most to least severe.
var Levels = []Level{Emergency, Alert, Critical, Error, Warning, Notice, Info, Debug}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < Emergency || l > Debug {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the eight levels.
func (l Level) Valid() bool {
	return l >= Emergency && l <= Debug
}

// AtLeast returns the more severe of l and min.
func (l Level) AtLeast(min Level) Level {
	if min < l {
		return min
	}
	return l
}

// Parse resolves a level name, case-insensitively.
func Parse(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

// MarshalJSON encodes the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML encodes the level as its name.
func (l Level) MarshalYAML() (any, error) {
	return l.String(), nil
}

// Package entitystore is the contract the audit engine needs from the host
// application's entity storage: point-in-time reads of an entity, reads of
// related ids (taxonomy assignments and similar relations), and lookup of an
// entity id by a unique field such as a user's login.
//
// Backends: an HTTP client against the host's read API, an in-memory store
// for tests, and an overlay that serves state pushed alongside a
// notification before falling back to another store.
package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned when the entity does not exist (or no longer
// exists). Callers treat it as a normal outcome, not a failure.
var ErrNotFound = errors.New("entity not found")

// Entity kinds tracked by the audit engine.
const (
	KindPost       = "post"
	KindTerm       = "term"
	KindUser       = "user"
	KindSetting    = "setting"
	KindFieldGroup = "field_group"
	KindPlugin     = "plugin"
	KindMedia      = "media"
)

// Kinds lists every tracked entity kind.
var Kinds = []string{
	KindPost, KindTerm, KindUser, KindSetting, KindFieldGroup, KindPlugin, KindMedia,
}

// Store reads entity state from the host application.
type Store interface {
	// Read returns the current field map of an entity, or ErrNotFound.
	Read(ctx context.Context, kind, id string) (map[string]any, error)

	// ReadRelated returns the ids related to an entity through the named
	// relation (for example the "category" terms of a post). An unknown
	// relation returns an empty list.
	ReadRelated(ctx context.Context, kind, id, relation string) ([]string, error)

	// Lookup returns the id of the entity of kind whose field equals value,
	// or ErrNotFound.
	Lookup(ctx context.Context, kind, field, value string) (string, error)
}

// BatchReader is implemented by stores that can read several entities of
// one kind in one round trip. Missing ids are simply absent from the result.
type BatchReader interface {
	ReadMany(ctx context.Context, kind string, ids []string) (map[string]map[string]any, error)
}

// labelFields lists, per kind, the fields that name an entity for display.
var labelFields = map[string][]string{
	KindPost:       {"title", "slug"},
	KindTerm:       {"name", "slug"},
	KindUser:       {"display_name", "login", "email"},
	KindSetting:    {"label", "name"},
	KindFieldGroup: {"title", "key"},
	KindPlugin:     {"name", "slug"},
	KindMedia:      {"title", "filename"},
}

// defaultLabelFields is used for kinds with no entry in labelFields.
var defaultLabelFields = []string{"title", "name", "label"}

// LabelOf returns the display label of an entity state, or "" if none of
// the kind's label fields hold a non-empty string.
func LabelOf(kind string, state map[string]any) string {
	fields, ok := labelFields[kind]
	if !ok {
		fields = defaultLabelFields
	}
	for _, f := range fields {
		if s, ok := state[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// IDString renders a decoded id value as a string. Integral floats (what
// encoding/json produces for numbers) lose their decimal point.
func IDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

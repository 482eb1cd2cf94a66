// Package format turns raw field values into bounded-length display strings
// for log details. Formatting is driven by the field's type hint and never
// fails: values that cannot be interpreted fall back to a plain rendering,
// and references that cannot be resolved fall back to "{kind} #{id}".
package format

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/keyxmakerx/audittrail/internal/changeset"
	"github.com/keyxmakerx/audittrail/internal/entitystore"
	"github.com/keyxmakerx/audittrail/internal/sanitize"
)

const (
	// Empty is shown for null, empty and false values.
	Empty = "(empty)"

	// HiddenValue is shown in place of secret values.
	HiddenValue = "(hidden)"

	// Ellipsis marks truncated output.
	Ellipsis = "..."

	// DefaultMaxLength bounds display strings when no limit is configured.
	DefaultMaxLength = 100

	// maxListItems is how many reference list items are resolved and shown.
	maxListItems = 3

	// dateLayout is the display layout for dates.
	dateLayout = "2006-01-02 15:04"
)

// dateLayouts are the accepted input layouts, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102",
}

// Formatter formats field values. Safe for concurrent use.
type Formatter struct {
	resolver  Resolver
	maxLength int
	currency  string
	title     cases.Caser
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithMaxLength sets the default display length bound.
func WithMaxLength(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxLength = n
		}
	}
}

// WithCurrency sets the symbol prefixed to price values.
func WithCurrency(symbol string) Option {
	return func(f *Formatter) { f.currency = symbol }
}

// New creates a Formatter. resolver may be nil, in which case references
// always render as "{kind} #{id}".
func New(resolver Resolver, opts ...Option) *Formatter {
	f := &Formatter{
		resolver:  resolver,
		maxLength: DefaultMaxLength,
		title:     cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MaxLength returns the configured display length bound.
func (f *Formatter) MaxLength() int {
	return f.maxLength
}

// Format renders v for display under the configured length bound.
func (f *Formatter) Format(ctx context.Context, v any, hint changeset.Hint) string {
	return f.FormatN(ctx, v, hint, f.maxLength)
}

// FormatN renders v for display, truncating free text to maxLength runes
// plus an ellipsis.
func (f *Formatter) FormatN(ctx context.Context, v any, hint changeset.Hint, maxLength int) string {
	if maxLength <= 0 {
		maxLength = f.maxLength
	}

	switch hint.Type {
	case changeset.ScalarBoolean:
		if v == nil {
			return Empty
		}
		if Truthy(v) {
			return "Yes"
		}
		return "No"
	case changeset.Hidden:
		if IsEmpty(v) {
			return Empty
		}
		return HiddenValue
	}

	if IsEmpty(v) {
		return Empty
	}

	switch hint.Type {
	case changeset.ReferenceID:
		return f.reference(ctx, hint.RefKind, entitystore.IDString(v))
	case changeset.ReferenceIDList:
		return f.referenceList(ctx, hint.RefKind, ToList(v))
	case changeset.EnumeratedChoice:
		return Truncate(f.ChoiceLabel(hint.Choices, Text(v)), maxLength)
	case changeset.EnumeratedChoiceList:
		items := ToList(v)
		labels := make([]string, 0, len(items))
		for _, item := range items {
			labels = append(labels, f.ChoiceLabel(hint.Choices, Text(item)))
		}
		return Truncate(strings.Join(labels, ", "), maxLength)
	case changeset.Date:
		return formatDate(v)
	case changeset.ScalarNumber:
		if n, ok := Number(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return Truncate(Text(v), maxLength)
	case changeset.Price:
		if n, ok := Number(v); ok {
			return f.currency + strconv.FormatFloat(n, 'f', 2, 64)
		}
		return Truncate(Text(v), maxLength)
	case changeset.FreeTextLong, changeset.ScalarText:
		if isComposite(v) {
			return Truncate(Compact(v), maxLength)
		}
		return Truncate(sanitize.Line(Text(v)), maxLength)
	default:
		if isComposite(v) {
			return Truncate(Compact(v), maxLength)
		}
		return Truncate(Text(v), maxLength)
	}
}

// reference resolves a single id to its label.
func (f *Formatter) reference(ctx context.Context, kind, id string) string {
	if id == "" || id == "0" {
		return Empty
	}
	if label, ok := f.resolve(ctx, kind, []string{id})[id]; ok {
		return label
	}
	return placeholder(kind, id)
}

// referenceList resolves up to maxListItems ids and prefixes the count.
func (f *Formatter) referenceList(ctx context.Context, kind string, items []any) string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := entitystore.IDString(item); id != "" && id != "0" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Empty
	}

	shown := ids
	if len(shown) > maxListItems {
		shown = shown[:maxListItems]
	}
	labels := f.resolve(ctx, kind, shown)

	parts := make([]string, 0, len(shown))
	for _, id := range shown {
		if label, ok := labels[id]; ok {
			parts = append(parts, label)
		} else {
			parts = append(parts, placeholder(kind, id))
		}
	}

	out := fmt.Sprintf("(%d) %s", len(ids), strings.Join(parts, ", "))
	if len(ids) > maxListItems {
		out += Ellipsis
	}
	return out
}

// ReferenceLabels resolves every id in ids, falling back to placeholders.
// Used for the added/removed members of reference set diffs.
func (f *Formatter) ReferenceLabels(ctx context.Context, kind string, ids []string) []string {
	labels := f.resolve(ctx, kind, ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		if label, ok := labels[id]; ok {
			out[i] = label
		} else {
			out[i] = placeholder(kind, id)
		}
	}
	return out
}

// resolve asks the resolver for labels, ignoring failures.
func (f *Formatter) resolve(ctx context.Context, kind string, ids []string) map[string]string {
	if f.resolver == nil || len(ids) == 0 {
		return map[string]string{}
	}
	labels, err := f.resolver.Resolve(ctx, kind, ids)
	if err != nil || labels == nil {
		return map[string]string{}
	}
	return labels
}

// ChoiceLabel returns the label for value from the table, or the value in
// title case when the table has no entry.
func (f *Formatter) ChoiceLabel(labels map[string]string, value string) string {
	if label, ok := labels[value]; ok {
		return label
	}
	if value == "" {
		return Empty
	}
	words := strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return f.title.String(words)
}

// placeholder is the display of an unresolvable reference.
func placeholder(kind, id string) string {
	return fmt.Sprintf("%s #%s", kindLabel(kind), id)
}

// kindLabels are the display names of reference kinds.
var kindLabels = map[string]string{
	entitystore.KindPost:       "Post",
	entitystore.KindTerm:       "Term",
	entitystore.KindUser:       "User",
	entitystore.KindSetting:    "Setting",
	entitystore.KindFieldGroup: "Field Group",
	entitystore.KindPlugin:     "Plugin",
	entitystore.KindMedia:      "Media",
}

func kindLabel(kind string) string {
	if l, ok := kindLabels[kind]; ok {
		return l
	}
	if kind == "" {
		return "Item"
	}
	return kind
}

// formatDate renders a date value, or the raw text if it does not parse.
func formatDate(v any) string {
	if t, ok := ParseTime(v); ok {
		return t.UTC().Format(dateLayout)
	}
	return Truncate(Text(v), DefaultMaxLength)
}

// ParseTime interprets v as a timestamp.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case float64:
		return time.Unix(int64(t), 0), true
	case int:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	}

	s := strings.TrimSpace(Text(v))
	if s == "" || s == "0000-00-00 00:00:00" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

// Truncate bounds s to maxLength runes, appending an ellipsis when cut.
func Truncate(s string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:maxLength]), " ") + Ellipsis
}

// Compact renders maps and lists as compact JSON with sorted keys.
func Compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Text renders a scalar as a string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int64, int32, uint, uint64:
		return fmt.Sprint(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		if isComposite(v) {
			return Compact(v)
		}
		return fmt.Sprint(v)
	}
}

// Number interprets v as a float.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// Truthy interprets v as a boolean the way stored flags are written.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "", "0", "false", "no", "off", "n":
			return false
		}
		return true
	}
	if n, ok := Number(v); ok {
		return n != 0
	}
	if l, ok := v.([]any); ok {
		return len(l) > 0
	}
	return true
}

// IsEmpty reports whether v is null, an empty string, false or an empty
// collection.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// ToList interprets v as a list. Scalars become one-element lists, comma
// separated strings are split.
func ToList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case map[string]any:
		// Stored lists sometimes come back as index-keyed maps.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []any{v}
	}
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string, []int, []map[string]any:
		return true
	}
	return false
}

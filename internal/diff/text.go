package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/keyxmakerx/audittrail/internal/sanitize"
)

const (
	// LongTextThreshold is the combined rune length above which long text
	// is only summarized.
	LongTextThreshold = 10000

	// SampleWords caps the added and removed word samples.
	SampleWords = 15

	// EdgeLength is how much of the head and tail is compared in summary
	// mode.
	EdgeLength = 200
)

// TextDiff summarizes a change between two long texts.
type TextDiff struct {
	// Summarized is true when the texts exceeded LongTextThreshold.
	Summarized bool

	OldLength   int
	NewLength   int
	LengthDelta int

	// Line-level statistics, full mode only.
	LinesAdded   int
	LinesRemoved int

	// Word samples, full mode only.
	WordsAdded   []string
	WordsRemoved []string

	// Head and tail comparison, summary mode only.
	HeadChanged bool
	TailChanged bool
}

// Changed reports whether any difference was observed.
func (d TextDiff) Changed() bool {
	if d.LengthDelta != 0 || d.HeadChanged || d.TailChanged {
		return true
	}
	return d.LinesAdded > 0 || d.LinesRemoved > 0
}

// Detail renders the diff as the structured detail stored in a change
// descriptor.
func (d TextDiff) Detail() map[string]any {
	m := map[string]any{
		"old_length":   d.OldLength,
		"new_length":   d.NewLength,
		"length_delta": d.LengthDelta,
	}
	if d.Summarized {
		m["summarized"] = true
		m["head_changed"] = d.HeadChanged
		m["tail_changed"] = d.TailChanged
		return m
	}
	m["lines_added"] = d.LinesAdded
	m["lines_removed"] = d.LinesRemoved
	if len(d.WordsAdded) > 0 {
		m["words_added"] = d.WordsAdded
	}
	if len(d.WordsRemoved) > 0 {
		m["words_removed"] = d.WordsRemoved
	}
	return m
}

// LongText compares two free texts. Below LongTextThreshold it does a
// line-level set difference plus word samples taken from the markup
// stripped text; above it only the length delta and the first and last
// EdgeLength runes are compared.
func LongText(old, new string) TextDiff {
	d := TextDiff{
		OldLength: utf8.RuneCountInString(old),
		NewLength: utf8.RuneCountInString(new),
	}
	d.LengthDelta = d.NewLength - d.OldLength

	if d.OldLength+d.NewLength > LongTextThreshold {
		d.Summarized = true
		d.HeadChanged = head(old, EdgeLength) != head(new, EdgeLength)
		d.TailChanged = tail(old, EdgeLength) != tail(new, EdgeLength)
		return d
	}

	added, removed := StringSetDiff(lines(old), lines(new))
	d.LinesAdded = len(added)
	d.LinesRemoved = len(removed)

	d.WordsAdded, d.WordsRemoved = wordSamples(old, new)
	return d
}

// lines splits text into trimmed, non-empty lines.
func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// wordSamples returns up to SampleWords words present only in new and only
// in old, in text order.
func wordSamples(old, new string) (added, removed []string) {
	oldWords := strings.Fields(sanitize.StripTags(old))
	newWords := strings.Fields(sanitize.StripTags(new))

	count := func(words []string) map[string]int {
		m := make(map[string]int, len(words))
		for _, w := range words {
			m[w]++
		}
		return m
	}
	oldCount, newCount := count(oldWords), count(newWords)

	sample := func(words []string, other map[string]int) []string {
		var out []string
		seen := make(map[string]bool)
		for _, w := range words {
			if len(out) == SampleWords {
				break
			}
			if other[w] == 0 && !seen[w] {
				out = append(out, w)
				seen[w] = true
			}
		}
		return out
	}
	return sample(newWords, oldCount), sample(oldWords, newCount)
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

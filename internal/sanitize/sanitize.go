// Package sanitize turns stored markup into plain text for log details.
// Uses bluemonday's strict policy to drop every tag while keeping the text
// content, so formatted values never carry HTML into log records.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict policy. Initialized once via sync.Once for
// thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// blockTagRe matches tags that end a visual line. They are replaced with a
// newline before stripping so paragraphs do not run together.
var blockTagRe = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr|/blockquote)\s*/?\s*>`)

// shortcodeRe matches bracketed editor shortcodes like [gallery ids="1,2"].
var shortcodeRe = regexp.MustCompile(`\[/?[a-zA-Z][\w-]*[^\]]*\]`)

// StripTags removes all markup and shortcodes from input and decodes HTML
// entities. Line structure is kept; runs of spaces collapse to one.
func StripTags(input string) string {
	if input == "" {
		return ""
	}
	withBreaks := blockTagRe.ReplaceAllString(input, "\n")
	stripped := getPolicy().Sanitize(withBreaks)
	stripped = shortcodeRe.ReplaceAllString(stripped, "")
	stripped = html.UnescapeString(stripped)

	lines := strings.Split(stripped, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Line flattens input to a single line of plain text.
func Line(input string) string {
	return strings.Join(strings.Fields(StripTags(input)), " ")
}

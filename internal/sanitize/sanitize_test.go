package sanitize

import "testing"

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"inline tags", "<strong>bold</strong> and <em>italic</em>", "bold and italic"},
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"script removed", "safe<script>alert(1)</script>", "safe"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"shortcode", `before [gallery ids="1,2"] after`, "before after"},
		{"whitespace", "a   b\n\n\n c", "a b\nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTags(tt.in); got != tt.want {
				t.Errorf("StripTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLine(t *testing.T) {
	if got := Line("<p>one</p>\n<p>two</p>"); got != "one two" {
		t.Errorf("Line = %q", got)
	}
}

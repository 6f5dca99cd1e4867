package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	html, err := HTML("# Status\n\nThe **kitchen** light is on.")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{"<h1", "Status", "<strong>kitchen</strong>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q:\n%s", want, html)
		}
	}
}

func TestPlain(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"heading", "## Report\ndone", "Report\ndone"},
		{"bold", "it is **on** now", "it is on now"},
		{"italic", "it is *dim* and _warm_", "it is dim and warm"},
		{"link", "see [the docs](https://example.com)", "see the docs"},
		{"inline code", "run `light.turn_on`", "run light.turn_on"},
		{"bullets", "- one\n- two", "one\ntwo"},
		{"code fence", "```yaml\nkey: value\n```", "key: value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plain(tt.in); got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

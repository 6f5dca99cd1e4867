// Package render converts model output (markdown) into the plain-text
// and HTML variants the API response carries. Plain text feeds
// text-to-speech, HTML feeds dashboard cards.
package render

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// HTML renders markdown to HTML.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic     = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	reCodeFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reBullet     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reBlank      = regexp.MustCompile(`\n{3,}`)
)

// Plain strips markdown syntax for speech output, keeping link text
// and code content.
func Plain(markdown string) string {
	s := reCodeFence.ReplaceAllString(markdown, "$1")
	s = reHeading.ReplaceAllString(s, "")
	s = reBold.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1$2")
	s = reInlineCode.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reBullet.ReplaceAllString(s, "")
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

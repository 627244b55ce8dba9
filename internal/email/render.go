package email

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderHTML converts a markdown body to HTML. Raw HTML in the source is
// dropped by the renderer; on failure the escaped text is returned.
func RenderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "<pre>" + html.EscapeString(markdown) + "</pre>"
	}
	return buf.String()
}

// Quote prefixes every line with "> " so it renders as a block quote
func Quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "> " + strings.TrimRight(line, "\r")
	}
	return strings.Join(lines, "\n")
}

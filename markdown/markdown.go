// Package markdown converts Markdown post content into an HTML fragment for a
// feed entry's content.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// md renders GitHub-flavoured Markdown. Raw HTML in the source is dropped and
// dangerous link schemes are blanked, since feed readers render the result.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// ToHTML renders src to HTML. Blank input renders to "".
func ToHTML(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var b strings.Builder
	if err := md.Convert([]byte(src), &b); err != nil {
		return ""
	}
	return strings.TrimSpace(b.String())
}

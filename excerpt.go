package pubfeed

import (
	"regexp"
	"strings"
)

// DefaultExcerptLength is the excerpt bound used when none is configured.
const DefaultExcerptLength = 300

var (
	reTag        = regexp.MustCompile(`<[^>]+>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Excerpt returns a plain-text summary of p of at most maxLength runes, plus
// "..." when it had to be cut. The result is not XML-escaped.
func Excerpt(p Post, maxLength int) string {
	return excerpt(p, maxLength, BlockRenderer{})
}

func excerpt(p Post, maxLength int, r BlockRenderer) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}
	if p.Excerpt != "" {
		return truncate(p.Excerpt, maxLength)
	}
	text := reTag.ReplaceAllString(r.Render(p.ContentBlocks), " ")
	text = strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
	return truncate(text, maxLength)
}

func truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}

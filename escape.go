package pubfeed

import "strings"

// xmlEscaper replaces the five XML-reserved characters. strings.NewReplacer
// scans the input once, so an '&' produced by an earlier replacement is never
// seen again and nothing is double-escaped.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes s for use in XML element text or attribute values.
// It is not idempotent: escape raw text exactly once.
func EscapeXML(s string) string {
	if s == "" {
		return ""
	}
	return xmlEscaper.Replace(s)
}

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// WrapCDATA wraps html in a CDATA section. Every "]]>" inside html is split
// across two adjacent sections so the terminator survives as literal text.
func WrapCDATA(html string) string {
	if html == "" {
		return cdataOpen + cdataClose
	}
	return cdataOpen + strings.ReplaceAll(html, cdataClose, "]]"+cdataClose+cdataOpen+">") + cdataClose
}

// StripInvalidXML drops invalid UTF-8 and every rune outside the XML 1.0
// Char production, neither of which may appear even inside CDATA.
func StripInvalidXML(s string) string {
	s = strings.ToValidUTF8(s, "")
	if strings.IndexFunc(s, func(r rune) bool { return !isXMLChar(r) }) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

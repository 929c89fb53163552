package pubfeed

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// EstimatedImageSize is the enclosure length advertised for images whose real
// size is unknown. Atom treats length as advisory.
const EstimatedImageSize int64 = 102400

const iso8601Millis = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// BuildURL makes path absolute against origin. Absolute http(s) URLs are
// returned unchanged; otherwise exactly one slash separates origin and path.
func BuildURL(origin, p string) string {
	lower := strings.ToLower(p)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return p
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(p, "/")
}

// ParseDate parses the date formats the content API and the SQLite store
// produce. Zone-less values are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("pubfeed: unrecognised date %q", s)
}

// postTime parses s, falling back to the Unix epoch so output stays
// deterministic for malformed data.
func postTime(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// FormatISO8601 formats t in UTC with millisecond precision and a Z suffix.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(iso8601Millis)
}

// siteDomain strips the scheme and any path from origin.
func siteDomain(origin string) string {
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		return u.Host
	}
	d := origin
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	return strings.TrimRight(d, "/")
}

// EntryID returns the post's tag URI. It depends only on the slug and the
// publish date, never on when the feed is generated.
func EntryID(origin string, p Post) string {
	day := postTime(p.PublishedAt).Format("2006-01-02")
	return "tag:" + siteDomain(origin) + "," + day + ":blog/" + p.Slug
}

// ImageMIMEType guesses an image MIME type from the URL's file extension.
func ImageMIMEType(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "svg":
		return "image/svg+xml"
	}
	return "image/jpeg"
}

// EstimateImageSize returns EstimatedImageSize without touching the network.
func EstimateImageSize(string) int64 {
	return EstimatedImageSize
}

// PostCategories merges categories and tags, keeps the first occurrence of
// each term and falls back to defaults when nothing remains.
func PostCategories(p Post, defaults []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{p.Categories, p.Tags} {
		for _, term := range FilterEmpty(group) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaults...)
	}
	return out
}

// FilterEmpty trims vals and drops blank entries.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package pubfeed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/microcosm-cc/bluemonday"
)

const (
	nsAtom  = "http://www.w3.org/2005/Atom"
	nsDC    = "http://purl.org/dc/elements/1.1/"
	nsThr   = "http://purl.org/syndication/thread/1.0"
	nsMedia = "http://search.yahoo.com/mrss/"

	atomMIME = "application/atom+xml"
	rssMIME  = "application/rss+xml"
)

// Generator builds Atom 1.0 documents from posts. It holds no mutable state
// and is safe for concurrent use.
type Generator struct {
	cfg      FeedConfig
	renderer BlockRenderer
	media    *MediaInspector
	now      func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMedia makes the generator look up featured images in a local media
// directory.
func WithMedia(dir, urlPrefix string) GeneratorOption {
	return func(g *Generator) {
		g.media.Dir = dir
		g.media.URLPrefix = urlPrefix
	}
}

// WithGeneratorClock sets the time source for the feed's updated stamp.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator returns a Generator for cfg. Unset fields take their defaults.
func NewGenerator(cfg FeedConfig, opts ...GeneratorOption) *Generator {
	cfg.setDefaults()
	g := &Generator{
		cfg:   cfg,
		media: &MediaInspector{Origin: cfg.SiteURL},
		now:   time.Now,
	}
	if cfg.SanitizeRawHTML {
		g.renderer.Sanitizer = bluemonday.UGCPolicy()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the generator's effective configuration.
func (g *Generator) Config() FeedConfig {
	return g.cfg
}

// Document is a generated feed plus the validators an HTTP response needs.
type Document struct {
	XML          string
	ETag         string    // weak; shared by the gzip and identity encodings
	LastModified time.Time // newest entry update, or generation time for an empty feed
	Entries      int
}

// GenerateFeed returns the complete Atom document for posts, with entries in
// the order given.
func (g *Generator) GenerateFeed(posts []Post) string {
	return g.Generate(posts).XML
}

// Generate builds the feed document for posts.
func (g *Generator) Generate(posts []Post) Document {
	now := g.now().UTC()

	var entries strings.Builder
	var newest time.Time
	for _, p := range posts {
		entries.WriteString(g.GenerateEntry(p))
		if t := entryUpdated(p); t.After(newest) {
			newest = t
		}
	}
	if len(posts) == 0 || newest.IsZero() {
		newest = now
	}

	body := entries.String()
	doc := g.feedHead(now) + body + "</feed>\n"
	sum := xxhash.Sum64String(g.feedHead(time.Time{}) + body)
	return Document{
		XML:          doc,
		ETag:         `W/"` + strconv.FormatUint(sum, 16) + `"`,
		LastModified: newest,
		Entries:      len(posts),
	}
}

func (g *Generator) feedID() string {
	return "tag:" + siteDomain(g.cfg.SiteURL) + "," + g.cfg.TagDate + ":feed"
}

func (g *Generator) url(p string) string {
	return BuildURL(g.cfg.SiteURL, p)
}

func (g *Generator) feedHead(now time.Time) string {
	c := g.cfg
	w := &xmlWriter{}
	w.raw(`<?xml version="1.0" encoding="UTF-8"?>`)
	if c.StylesheetURL != "" {
		w.raw(`<?xml-stylesheet type="text/xsl" href="` + EscapeXML(g.url(c.StylesheetURL)) + `"?>`)
	}
	w.raw(fmt.Sprintf(`<feed xmlns="%s" xmlns:atom="%s" xmlns:dc="%s" xmlns:thr="%s" xmlns:media="%s" xml:lang="%s">`,
		nsAtom, nsAtom, nsDC, nsThr, nsMedia, EscapeXML(c.Language)))
	w.indent++
	w.elem("id", g.feedID())
	w.typed("title", c.Title)
	w.elem("updated", FormatISO8601(now))
	w.typed("subtitle", c.Subtitle)
	w.link("self", atomMIME, g.url(c.AtomPath))
	w.link("alternate", "text/html", g.url(c.BlogPath))
	w.link("alternate", rssMIME, g.url(c.RSSPath))
	gen := `<generator`
	if c.GeneratorURI != "" {
		gen += ` uri="` + EscapeXML(c.GeneratorURI) + `"`
	}
	w.raw(gen + ` version="` + EscapeXML(c.GeneratorVersion) + `">` + EscapeXML(c.GeneratorName) + `</generator>`)
	w.elem("icon", g.url(c.IconPath))
	w.elem("logo", g.url(c.LogoPath))
	w.elem("rights", c.Rights)
	w.person("author", c.Author)
	w.person("contributor", c.Contributor)
	w.elem("dc:title", c.Title)
	if c.Description != "" {
		w.elem("dc:description", c.Description)
	}
	w.elem("dc:language", c.Language)
	w.elem("dc:rights", c.Rights)
	w.elem("dc:publisher", c.Publisher)
	w.elem("dc:creator", c.Author.Name)
	w.elem("dc:date", FormatISO8601(now))
	for _, term := range FilterEmpty(c.FeedCategories) {
		w.category(term)
	}
	return w.String()
}

// entryUpdated is the post's last modification, or its publish time.
func entryUpdated(p Post) time.Time {
	if p.UpdatedAt != "" {
		if t, err := ParseDate(p.UpdatedAt); err == nil {
			return t
		}
	}
	return postTime(p.PublishedAt)
}

// GenerateEntry returns the <entry> element for p. The output depends only on
// p and the configuration.
func (g *Generator) GenerateEntry(p Post) string {
	c := g.cfg
	published := postTime(p.PublishedAt)

	alternate := c.BlogPath + "/" + p.Slug
	if p.CanonicalURL != "" {
		alternate = p.CanonicalURL
	}

	author := Author{Name: p.authorName(), Email: c.Author.Email, URI: c.Author.URI}
	if author.Name == "" {
		author.Name = c.Author.Name
	}

	w := &xmlWriter{indent: 1}
	w.raw("<entry>")
	w.indent++
	w.elem("id", EntryID(c.SiteURL, p))
	w.typed("title", p.Title)
	w.elem("updated", FormatISO8601(entryUpdated(p)))
	w.elem("published", FormatISO8601(published))
	w.link("alternate", "text/html", g.url(alternate))

	var media MediaInfo
	if p.FeaturedImage != "" {
		media = g.media.Inspect(p.FeaturedImage)
		w.raw(`<link rel="enclosure" type="` + EscapeXML(media.Type) + `" length="` +
			strconv.FormatInt(media.Length, 10) + `" href="` + EscapeXML(media.URL) + `" />`)
	}

	w.person("author", author)
	for _, term := range PostCategories(p, c.DefaultCategories) {
		w.category(term)
	}
	w.typed("summary", excerpt(p, c.ExcerptLength, g.renderer))
	if html := g.renderer.Render(p.ContentBlocks); html != "" {
		w.raw(`<content type="html">` + WrapCDATA(html) + `</content>`)
	}

	w.elem("dc:creator", author.Name)
	w.elem("dc:date", FormatISO8601(published))
	w.elem("dc:language", c.Language)
	w.elem("dc:rights", c.Rights)
	w.elem("dc:publisher", c.Publisher)

	w.raw("<source>")
	w.indent++
	w.elem("id", g.feedID())
	w.typed("title", c.Title)
	w.link("self", atomMIME, g.url(c.AtomPath))
	w.indent--
	w.raw("</source>")

	if media.Width > 0 && media.Height > 0 {
		w.raw(`<media:thumbnail url="` + EscapeXML(media.URL) + `" width="` + strconv.Itoa(media.Width) +
			`" height="` + strconv.Itoa(media.Height) + `" />`)
	}
	w.indent--
	w.raw("</entry>")
	return w.String()
}

// xmlWriter emits one element per line at the current indent. elem, typed,
// link and category escape their arguments; raw writes verbatim apart from
// dropping characters XML cannot carry.
type xmlWriter struct {
	sb     strings.Builder
	indent int
}

func (w *xmlWriter) String() string { return w.sb.String() }

func (w *xmlWriter) raw(s string) {
	w.sb.WriteString(strings.Repeat("  ", w.indent))
	w.sb.WriteString(StripInvalidXML(s))
	w.sb.WriteByte('\n')
}

func (w *xmlWriter) elem(name, text string) {
	w.raw("<" + name + ">" + EscapeXML(text) + "</" + name + ">")
}

func (w *xmlWriter) typed(name, text string) {
	w.raw("<" + name + ` type="text">` + EscapeXML(text) + "</" + name + ">")
}

func (w *xmlWriter) link(rel, typ, href string) {
	w.raw(`<link rel="` + rel + `" type="` + typ + `" href="` + EscapeXML(href) + `" />`)
}

func (w *xmlWriter) category(term string) {
	t := EscapeXML(term)
	w.raw(`<category term="` + t + `" label="` + t + `" />`)
}

func (w *xmlWriter) person(name string, a Author) {
	w.raw("<" + name + ">")
	w.indent++
	w.elem("name", a.Name)
	if a.Email != "" {
		w.elem("email", a.Email)
	}
	if a.URI != "" {
		w.elem("uri", a.URI)
	}
	w.indent--
	w.raw("</" + name + ">")
}

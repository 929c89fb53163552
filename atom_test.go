package pubfeed

import (
	"bytes"
	"encoding/xml"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed/atom"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testGenerator(opts ...GeneratorOption) *Generator {
	cfg := FeedConfig{
		SiteURL: "https://example.com",
		Title:   "Example Blog",
		Author:  Author{Name: "Site Owner", Email: "owner@example.com"},
	}
	opts = append([]GeneratorOption{WithGeneratorClock(fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))}, opts...)
	return NewGenerator(cfg, opts...)
}

func scenarioPost() Post {
	return Post{
		Slug:          "abc",
		Title:         "A & B",
		PublishedAt:   "2025-01-01T00:00:00Z",
		ContentBlocks: Blocks{Paragraph{Text: "Hi <there>"}},
		Categories:    []string{"Trading"},
	}
}

func TestGenerateEntryScenario(t *testing.T) {
	entry := testGenerator().GenerateEntry(scenarioPost())

	if !strings.Contains(entry, `<title type="text">A &amp; B</title>`) {
		t.Errorf("title not escaped:\n%s", entry)
	}
	if !strings.Contains(entry, `<content type="html"><![CDATA[<p>Hi <there></p>]]></content>`) {
		t.Errorf("content not wrapped in CDATA:\n%s", entry)
	}
	if n := strings.Count(entry, `<category term="Trading"`); n != 1 {
		t.Errorf("found %d Trading categories, want 1:\n%s", n, entry)
	}
	if !strings.Contains(entry, "<id>tag:example.com,2025-01-01:blog/abc</id>") {
		t.Errorf("unexpected entry id:\n%s", entry)
	}
	if !strings.Contains(entry, `<link rel="alternate" type="text/html" href="https://example.com/blog/abc" />`) {
		t.Errorf("missing alternate link:\n%s", entry)
	}
	if strings.Contains(entry, `rel="enclosure"`) {
		t.Errorf("enclosure emitted without a featured image:\n%s", entry)
	}
}

func TestGenerateEntryAuthorFallback(t *testing.T) {
	g := testGenerator()
	entry := g.GenerateEntry(scenarioPost())
	if !strings.Contains(entry, "<name>Site Owner</name>") {
		t.Errorf("entry without author should use the configured author:\n%s", entry)
	}
	if !strings.Contains(entry, "<email>owner@example.com</email>") || !strings.Contains(entry, "<uri>https://example.com</uri>") {
		t.Errorf("entry author missing email or uri:\n%s", entry)
	}

	p := scenarioPost()
	p.Author = &Author{Name: "Jane <J>"}
	entry = g.GenerateEntry(p)
	if !strings.Contains(entry, "<name>Jane &lt;J&gt;</name>") || !strings.Contains(entry, "<dc:creator>Jane &lt;J&gt;</dc:creator>") {
		t.Errorf("post author not used:\n%s", entry)
	}

	p = scenarioPost()
	p.AuthorName = "Flat Name"
	if entry = g.GenerateEntry(p); !strings.Contains(entry, "<name>Flat Name</name>") {
		t.Errorf("author_name not used:\n%s", entry)
	}
}

func TestGenerateEntryOmitsEmptyContent(t *testing.T) {
	p := scenarioPost()
	p.ContentBlocks = Blocks{Unknown{Type: "divider"}}
	entry := testGenerator().GenerateEntry(p)
	if strings.Contains(entry, "<content") {
		t.Errorf("content emitted for empty rendering:\n%s", entry)
	}
	if !strings.Contains(entry, `<summary type="text"></summary>`) {
		t.Errorf("summary should still be present:\n%s", entry)
	}
}

func TestGenerateEntryEnclosure(t *testing.T) {
	p := scenarioPost()
	p.FeaturedImage = "/images/cover.webp"
	entry := testGenerator().GenerateEntry(p)
	want := `<link rel="enclosure" type="image/webp" length="102400" href="https://example.com/images/cover.webp" />`
	if !strings.Contains(entry, want) {
		t.Errorf("missing enclosure %s:\n%s", want, entry)
	}
	if strings.Contains(entry, "media:thumbnail") {
		t.Errorf("thumbnail emitted without known dimensions:\n%s", entry)
	}
}

func TestGenerateEntryCanonicalURL(t *testing.T) {
	p := scenarioPost()
	p.CanonicalURL = "https://elsewhere.example.org/abc"
	entry := testGenerator().GenerateEntry(p)
	if !strings.Contains(entry, `href="https://elsewhere.example.org/abc"`) {
		t.Errorf("canonical url not used for alternate link:\n%s", entry)
	}
}

func TestGenerateEntryUpdated(t *testing.T) {
	p := scenarioPost()
	p.UpdatedAt = "2025-02-03T04:05:06Z"
	entry := testGenerator().GenerateEntry(p)
	if !strings.Contains(entry, "<updated>2025-02-03T04:05:06.000Z</updated>") {
		t.Errorf("updated_at not used:\n%s", entry)
	}
	if !strings.Contains(entry, "<published>2025-01-01T00:00:00.000Z</published>") {
		t.Errorf("published changed:\n%s", entry)
	}
}

func TestGenerateEntryBadDate(t *testing.T) {
	p := scenarioPost()
	p.PublishedAt = "not a date"
	entry := testGenerator().GenerateEntry(p)
	if !strings.Contains(entry, "<published>1970-01-01T00:00:00.000Z</published>") {
		t.Errorf("bad date should fall back to the epoch:\n%s", entry)
	}
	if !strings.Contains(entry, "<id>tag:example.com,1970-01-01:blog/abc</id>") {
		t.Errorf("unexpected id for bad date:\n%s", entry)
	}
}

// childOrder returns the local names of the direct children of every element
// named parent in doc.
func childOrder(t *testing.T, doc, parent string) [][]string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	var out [][]string
	depth, parentDepth := 0, -1
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if parentDepth < 0 && el.Name.Local == parent {
				parentDepth = depth
				out = append(out, nil)
			} else if parentDepth >= 0 && depth == parentDepth+1 {
				out[len(out)-1] = append(out[len(out)-1], el.Name.Local)
			}
		case xml.EndElement:
			if depth == parentDepth {
				parentDepth = -1
			}
			depth--
		}
	}
	return out
}

func TestEntryElementOrder(t *testing.T) {
	p := scenarioPost()
	p.FeaturedImage = "/images/cover.png"
	p.Tags = []string{"SPX"}
	doc := testGenerator().GenerateFeed([]Post{p})

	got := childOrder(t, doc, "entry")
	want := []string{
		"id", "title", "updated", "published", "link", "link", "author",
		"category", "category", "summary", "content",
		"creator", "date", "language", "rights", "publisher", "source",
	}
	if len(got) != 1 {
		t.Fatalf("found %d entries, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("entry children = %v\nwant %v", got[0], want)
	}
}

func TestFeedElementOrder(t *testing.T) {
	doc := testGenerator().GenerateFeed([]Post{scenarioPost()})
	got := childOrder(t, doc, "feed")
	want := []string{
		"id", "title", "updated", "subtitle", "link", "link", "link", "generator",
		"icon", "logo", "rights", "author", "contributor",
		"title", "description", "language", "rights", "publisher", "creator", "date",
		"category", "entry",
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0], want) {
		t.Errorf("feed children = %v\nwant %v", got, want)
	}
}

func TestGenerateFeedParses(t *testing.T) {
	posts := []Post{
		{Slug: "third", Title: "Third", PublishedAt: "2025-03-01T00:00:00Z", Tags: []string{"x"}},
		{Slug: "second", Title: "Second <2>", PublishedAt: "2025-02-01T00:00:00Z"},
		scenarioPost(),
	}
	doc := testGenerator().GenerateFeed(posts)

	feed, err := (&atom.Parser{}).Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse feed: %v\n%s", err, doc)
	}
	if feed.ID != "tag:example.com,2024:feed" {
		t.Errorf("feed id = %q", feed.ID)
	}
	if feed.Title != "Example Blog" {
		t.Errorf("feed title = %q", feed.Title)
	}
	if feed.Updated != "2025-06-01T12:00:00.000Z" {
		t.Errorf("feed updated = %q, want generation time", feed.Updated)
	}
	if len(feed.Entries) != 3 {
		t.Fatalf("parsed %d entries, want 3", len(feed.Entries))
	}
	for i, slug := range []string{"third", "second", "abc"} {
		if want := "tag:example.com," + posts[i].PublishedAt[:10] + ":blog/" + slug; feed.Entries[i].ID != want {
			t.Errorf("entry %d id = %q, want %q", i, feed.Entries[i].ID, want)
		}
	}
	if feed.Entries[1].Title != "Second <2>" {
		t.Errorf("entry title = %q", feed.Entries[1].Title)
	}
	if feed.Entries[2].Title != "A & B" {
		t.Errorf("entry title = %q", feed.Entries[2].Title)
	}
	if cats := feed.Entries[1].Categories; len(cats) != 1 || cats[0].Term != "Blog" {
		t.Errorf("entry without taxonomy should get the default category, got %+v", cats)
	}
}

func TestGenerateFeedContentRoundTrip(t *testing.T) {
	html := `<p>a]]>b</p><pre><code>x &amp;&amp; y</code></pre>`
	p := scenarioPost()
	p.ContentBlocks = Blocks{HTML{HTML: html}}
	doc := testGenerator().GenerateFeed([]Post{p})

	var feed struct {
		Entries []struct {
			Content string `xml:"content"`
		} `xml:"entry"`
	}
	if err := xml.Unmarshal([]byte(doc), &feed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(feed.Entries) != 1 || feed.Entries[0].Content != html {
		t.Errorf("content = %+v, want %q", feed.Entries, html)
	}
}

func TestGenerateFeedDropsControlCharacters(t *testing.T) {
	p := scenarioPost()
	p.Title = "Q3 \x0b results\xff\uFFFE"
	p.Author = &Author{Name: "Ann\x01"}
	p.Categories = []string{"a\x00b"}
	p.ContentBlocks = Blocks{Paragraph{Text: "form\x0cfeed"}}
	doc := testGenerator().GenerateFeed([]Post{p})

	dec := xml.NewDecoder(strings.NewReader(doc))
	var path []string
	got := map[string]string{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("generated feed is not well-formed: %v\n%s", err, doc)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			path = append(path, el.Name.Local)
			if el.Name.Local == "category" {
				for _, a := range el.Attr {
					if a.Name.Local == "term" {
						got["category"] = a.Value
					}
				}
			}
		case xml.EndElement:
			path = path[:len(path)-1]
		case xml.CharData:
			key := strings.Join(path, "/")
			got[key] += string(el)
		}
	}

	for key, want := range map[string]string{
		"feed/entry/title":   "Q3  results",
		"feed/entry/content": "<p>formfeed</p>",
		"category":           "ab",
	} {
		if got[key] != want {
			t.Errorf("%s = %q, want %q", key, got[key], want)
		}
	}
	if got["feed/entry/author/name"] != "Ann" {
		t.Errorf("author name = %q", got["feed/entry/author/name"])
	}
}

func TestGenerateFeedEmpty(t *testing.T) {
	doc := testGenerator().Generate(nil)
	if doc.Entries != 0 {
		t.Errorf("Entries = %d", doc.Entries)
	}
	if !doc.LastModified.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("LastModified = %v, want generation time", doc.LastModified)
	}
	feed, err := (&atom.Parser{}).Parse(strings.NewReader(doc.XML))
	if err != nil {
		t.Fatalf("parse empty feed: %v\n%s", err, doc.XML)
	}
	if len(feed.Entries) != 0 || feed.ID == "" || feed.Title == "" || feed.Updated == "" {
		t.Errorf("empty feed missing required elements: %+v", feed)
	}
	if !strings.HasPrefix(doc.XML, `<?xml version="1.0" encoding="UTF-8"?>`) || !strings.HasSuffix(doc.XML, "</feed>\n") {
		t.Errorf("unexpected document framing:\n%s", doc.XML)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	posts := []Post{scenarioPost(), {Slug: "b", Title: "B", PublishedAt: "2024-12-01T10:00:00Z"}}
	early := testGenerator(WithGeneratorClock(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))))
	late := testGenerator(WithGeneratorClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))

	a, b := early.Generate(posts), late.Generate(posts)
	if !strings.HasPrefix(a.ETag, `W/"`) {
		t.Errorf("ETag = %q, want a weak validator", a.ETag)
	}
	if a.ETag != b.ETag {
		t.Errorf("ETag changed with the clock: %s vs %s", a.ETag, b.ETag)
	}
	if a.XML == b.XML {
		t.Error("feed updated stamp should follow the clock")
	}
	if again := early.Generate(posts); again.XML != a.XML {
		t.Error("same input and clock produced different documents")
	}
	for _, p := range posts {
		if early.GenerateEntry(p) != late.GenerateEntry(p) {
			t.Errorf("entry %s depends on generation time", p.Slug)
		}
	}
	if !a.LastModified.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LastModified = %v, want newest entry", a.LastModified)
	}

	changed := append([]Post(nil), posts...)
	changed[1].Title = "B2"
	if early.Generate(changed).ETag == a.ETag {
		t.Error("ETag did not change with the entries")
	}
}

func TestGenerateFeedStylesheet(t *testing.T) {
	cfg := FeedConfig{SiteURL: "https://example.com", StylesheetURL: "/atom.xsl"}
	doc := NewGenerator(cfg).GenerateFeed(nil)
	want := `<?xml-stylesheet type="text/xsl" href="https://example.com/atom.xsl"?>`
	if !strings.Contains(doc, want) {
		t.Errorf("missing stylesheet instruction:\n%s", doc)
	}
	if strings.Contains(NewGenerator(FeedConfig{}).GenerateFeed(nil), "xml-stylesheet") {
		t.Error("stylesheet emitted without configuration")
	}
}

func TestGenerateFeedEscapesConfig(t *testing.T) {
	cfg := FeedConfig{SiteURL: "https://example.com", Title: `Tom & "Jerry"`}
	doc := NewGenerator(cfg).GenerateFeed(nil)
	if !strings.Contains(doc, `<title type="text">Tom &amp; &quot;Jerry&quot;</title>`) {
		t.Errorf("feed title not escaped:\n%s", doc)
	}
	if err := xml.Unmarshal([]byte(doc), new(struct{})); err != nil {
		t.Errorf("document is not well-formed: %v", err)
	}
}

func TestGenerateEntryMediaThumbnail(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}

	p := scenarioPost()
	p.FeaturedImage = "/uploads/cover.png"
	entry := testGenerator(WithMedia(dir, "/uploads")).GenerateEntry(p)

	enclosure := `<link rel="enclosure" type="image/png" length="` + strconv.Itoa(buf.Len()) + `" href="https://example.com/uploads/cover.png" />`
	if !strings.Contains(entry, enclosure) {
		t.Errorf("missing enclosure %s:\n%s", enclosure, entry)
	}
	thumb := `<media:thumbnail url="https://example.com/uploads/cover.png" width="3" height="2" />`
	if !strings.Contains(entry, thumb) {
		t.Errorf("missing thumbnail %s:\n%s", thumb, entry)
	}
	if strings.Index(entry, thumb) < strings.Index(entry, "</source>") {
		t.Errorf("thumbnail should follow the source block:\n%s", entry)
	}
}

package pubfeed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/eringen/pubfeed/markdown"
)

// Block is one unit of structured post content. The set of implementations is
// closed; anything the decoder does not recognise becomes an Unknown.
type Block interface {
	Kind() string
	block()
}

// Paragraph renders as <p>.
type Paragraph struct{ Text string }

// Heading renders as <h1>..<h6>; Level is always within that range.
type Heading struct {
	Level int
	Text  string
}

// Image renders as a <figure> with an optional caption.
type Image struct {
	URL     string
	Alt     string
	Caption string
}

// List renders as <ol> when Ordered, <ul> otherwise. Items are trusted HTML.
type List struct {
	Ordered bool
	Items   []string
}

// Quote renders as <blockquote>.
type Quote struct{ Text string }

// Code renders as an escaped <pre><code> block.
type Code struct {
	Code     string
	Language string
}

// HTML is passed through verbatim.
type HTML struct{ HTML string }

// Markdown is converted to HTML with the markdown package.
type Markdown struct{ Source string }

// Unknown keeps the raw fields of a block whose kind is not recognised.
type Unknown struct {
	Type   string
	Fields map[string]any
}

func (Paragraph) Kind() string { return "paragraph" }
func (Heading) Kind() string   { return "heading" }
func (Image) Kind() string     { return "image" }
func (List) Kind() string      { return "list" }
func (Quote) Kind() string     { return "quote" }
func (Code) Kind() string      { return "code" }
func (HTML) Kind() string      { return "html" }
func (Markdown) Kind() string  { return "markdown" }
func (u Unknown) Kind() string { return u.Type }

func (Paragraph) block() {}
func (Heading) block()   {}
func (Image) block()     {}
func (List) block()      {}
func (Quote) block()     {}
func (Code) block()      {}
func (HTML) block()      {}
func (Markdown) block()  {}
func (Unknown) block()   {}

// Blocks is an ordered list of content blocks. Order is reading order.
type Blocks []Block

// UnmarshalJSON accepts any JSON value. Anything but an array decodes to an
// empty list; non-object elements become empty Unknown blocks.
func (b *Blocks) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = decodeBlocks(raw)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML post files.
func (b *Blocks) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*b = decodeBlocks(raw)
	return nil
}

// MarshalJSON encodes blocks in the content API's flat shape.
func (b Blocks) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, 0, len(b))
	for _, blk := range b {
		out = append(out, EncodeBlock(blk))
	}
	return json.Marshal(out)
}

func decodeBlocks(raw any) Blocks {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make(Blocks, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, Unknown{})
			continue
		}
		out = append(out, DecodeBlock(m))
	}
	return out
}

// DecodeBlock builds a Block from a loosely shaped map. Both the flat API shape
// ({"type":"paragraph","content":"..."}) and the CMS shape, where content or
// data is an object ({"content":{"text":"..."},"settings":{"level":3}}), are
// understood.
func DecodeBlock(m map[string]any) Block {
	f := blockFields(m)
	kind := strings.ToLower(strings.TrimSpace(f.top("type", "kind", "block_type")))
	switch kind {
	case "paragraph":
		return Paragraph{Text: f.str("content", "text")}
	case "heading", "header":
		return Heading{Level: f.level(), Text: f.str("content", "text")}
	case "image":
		return Image{
			URL:     f.str("url", "src", "mediaUrl"),
			Alt:     f.str("alt", "mediaAlt"),
			Caption: f.str("caption"),
		}
	case "list":
		return List{Ordered: f.str("style") == "ordered", Items: f.items()}
	case "quote", "blockquote":
		return Quote{Text: f.str("content", "text")}
	case "code":
		return Code{Code: f.str("content", "code"), Language: f.str("language", "lang")}
	case "html", "raw":
		return HTML{HTML: f.str("content", "html", "text")}
	case "markdown":
		return Markdown{Source: f.str("content", "markdown", "text")}
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Unknown{Type: kind, Fields: fields}
}

// EncodeBlock is the inverse of DecodeBlock for the flat API shape.
func EncodeBlock(b Block) map[string]any {
	switch v := b.(type) {
	case Paragraph:
		return map[string]any{"type": "paragraph", "content": v.Text}
	case Heading:
		return map[string]any{"type": "heading", "level": v.Level, "content": v.Text}
	case Image:
		return map[string]any{"type": "image", "url": v.URL, "alt": v.Alt, "caption": v.Caption}
	case List:
		style := "unordered"
		if v.Ordered {
			style = "ordered"
		}
		return map[string]any{"type": "list", "style": style, "items": v.Items}
	case Quote:
		return map[string]any{"type": "quote", "content": v.Text}
	case Code:
		return map[string]any{"type": "code", "code": v.Code, "language": v.Language}
	case HTML:
		return map[string]any{"type": "html", "content": v.HTML}
	case Markdown:
		return map[string]any{"type": "markdown", "content": v.Source}
	case Unknown:
		out := make(map[string]any, len(v.Fields)+1)
		for k, val := range v.Fields {
			out[k] = val
		}
		if v.Type != "" {
			out["type"] = v.Type
		}
		return out
	}
	return map[string]any{}
}

// blockFields looks keys up on the block itself, then inside a nested
// "content" or "data" object.
type blockFields map[string]any

func (f blockFields) top(keys ...string) string {
	for _, k := range keys {
		if s, ok := f[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (f blockFields) nested() []map[string]any {
	var out []map[string]any
	for _, k := range []string{"content", "data"} {
		if m, ok := f[k].(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f blockFields) str(keys ...string) string {
	for _, k := range keys {
		if s, ok := f[k].(string); ok && s != "" {
			return s
		}
		for _, n := range f.nested() {
			if s, ok := n[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// scalar is str that also accepts numbers and booleans. Objects, arrays and
// null yield "".
func (f blockFields) scalar(keys ...string) string {
	for _, k := range keys {
		if s := scalarString(f[k]); s != "" {
			return s
		}
		for _, n := range f.nested() {
			if s := scalarString(n[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(x)
	}
	return ""
}

func (f blockFields) level() int {
	candidates := []any{f["level"]}
	if settings, ok := f["settings"].(map[string]any); ok {
		candidates = append(candidates, settings["level"])
	}
	for _, n := range f.nested() {
		candidates = append(candidates, n["level"])
	}
	for _, c := range candidates {
		if n, ok := toInt(c); ok {
			if n >= 1 && n <= 6 {
				return n
			}
			return 2
		}
	}
	return 2
}

func (f blockFields) items() []string {
	var raw []any
	if v, ok := f["items"].([]any); ok {
		raw = v
	} else {
		for _, n := range f.nested() {
			if v, ok := n["items"].([]any); ok {
				raw = v
				break
			}
		}
	}
	items := make([]string, 0, len(raw))
	for _, it := range raw {
		switch v := it.(type) {
		case string:
			items = append(items, v)
		case map[string]any:
			items = append(items, blockFields(v).str("content", "text"))
		case nil:
		default:
			items = append(items, fmt.Sprint(v))
		}
	}
	return items
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// BlockRenderer turns content blocks into an HTML fragment. The zero value
// passes html/raw blocks through untouched; set Sanitizer to filter them.
type BlockRenderer struct {
	Sanitizer *bluemonday.Policy
}

// RenderBlocks renders blocks with the zero BlockRenderer.
func RenderBlocks(blocks []Block) string {
	return BlockRenderer{}.Render(blocks)
}

// Render renders each block in order, drops the empty ones and joins the rest
// with newlines.
func (r BlockRenderer) Render(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if s := r.renderBlock(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func (r BlockRenderer) renderBlock(b Block) string {
	switch v := b.(type) {
	case Paragraph:
		return wrapTag("p", v.Text)
	case Heading:
		level := v.Level
		if level < 1 || level > 6 {
			level = 2
		}
		return wrapTag("h"+strconv.Itoa(level), v.Text)
	case Image:
		return renderImage(v)
	case List:
		if len(v.Items) == 0 {
			return ""
		}
		tag := "ul"
		if v.Ordered {
			tag = "ol"
		}
		var sb strings.Builder
		sb.WriteString("<" + tag + ">")
		for _, item := range v.Items {
			sb.WriteString("<li>" + item + "</li>")
		}
		sb.WriteString("</" + tag + ">")
		return sb.String()
	case Quote:
		return wrapTag("blockquote", v.Text)
	case Code:
		if v.Code == "" {
			return ""
		}
		return "<pre><code>" + EscapeXML(v.Code) + "</code></pre>"
	case HTML:
		if r.Sanitizer != nil {
			return r.Sanitizer.Sanitize(v.HTML)
		}
		return v.HTML
	case Markdown:
		return markdown.ToHTML(v.Source)
	case Unknown:
		return wrapTag("p", blockFields(v.Fields).scalar("content", "text"))
	}
	return ""
}

func wrapTag(tag, inner string) string {
	if inner == "" {
		return ""
	}
	return "<" + tag + ">" + inner + "</" + tag + ">"
}

func renderImage(img Image) string {
	if img.URL == "" {
		return ""
	}
	alt := img.Alt
	if alt == "" {
		alt = img.Caption
	}
	var sb strings.Builder
	sb.WriteString(`<figure><img src="` + img.URL + `" alt="` + EscapeXML(alt) + `" />`)
	if img.Caption != "" {
		sb.WriteString("<figcaption>" + EscapeXML(img.Caption) + "</figcaption>")
	}
	sb.WriteString("</figure>")
	return sb.String()
}

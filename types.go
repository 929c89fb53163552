package pubfeed

// Post is a published blog post as returned by the content API. Empty strings
// stand for absent optional fields.
type Post struct {
	Slug          string   `json:"slug" yaml:"slug"`
	Title         string   `json:"title" yaml:"title"`
	Excerpt       string   `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	ContentBlocks Blocks   `json:"content_blocks,omitempty" yaml:"content_blocks,omitempty"`
	FeaturedImage string   `json:"featured_image,omitempty" yaml:"featured_image,omitempty"`
	PublishedAt   string   `json:"published_at" yaml:"published_at"`
	UpdatedAt     string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Author        *Author  `json:"author,omitempty" yaml:"author,omitempty"`
	AuthorName    string   `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	CanonicalURL  string   `json:"canonical_url,omitempty" yaml:"canonical_url,omitempty"`
	Categories    []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Author identifies the person credited for a post or the feed.
type Author struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	URI   string `json:"uri,omitempty" yaml:"uri,omitempty"`
}

// authorName resolves the post's credited author, or "" when it has none.
func (p Post) authorName() string {
	if p.Author != nil && p.Author.Name != "" {
		return p.Author.Name
	}
	return p.AuthorName
}

// postsEnvelope is the response body of GET /api/posts.
type postsEnvelope struct {
	Data []Post `json:"data"`
}

package pubfeed

import (
	"net/http"
	"time"
)

// FeedConfig holds everything the generator needs to describe the site. It is
// read, never mutated, while a feed is built.
type FeedConfig struct {
	SiteURL     string // Site origin (default "http://localhost:3000")
	Title       string // Feed title (default "Blog")
	Subtitle    string // Feed subtitle
	Description string // dc:description; defaults to Subtitle
	Rights      string // Copyright line, used for rights and dc:rights
	Language    string // xml:lang and dc:language (default "en-US")
	Publisher   string // dc:publisher (default Title)

	Author      Author // Default author for the feed and for posts without one
	Contributor Author // Feed-level contributor (defaults to Author)

	DefaultCategories []string // Entry categories when a post has none (default ["Blog"])
	FeedCategories    []string // Feed-level categories (default ["Blog"])

	MaxItems      int    // Entries requested from the source (default 50)
	ExcerptLength int    // Summary bound in characters (default 300)
	TagDate       string // Date component of the feed tag URI (default "2024")

	AtomPath      string // Path of this feed (default "/atom.xml")
	RSSPath       string // Sibling RSS feed, linked only (default "/feed.xml")
	BlogPath      string // Blog index and post prefix (default "/blog")
	IconPath      string // default "/favicon.ico"
	LogoPath      string // default "/logo.png"
	StylesheetURL string // Optional XSL stylesheet for browsers

	GeneratorName    string // default "pubfeed"
	GeneratorURI     string
	GeneratorVersion string // default "1.0"

	SanitizeRawHTML bool // Filter html/raw blocks through a UGC policy
}

func (c *FeedConfig) setDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3000"
	}
	if c.Title == "" {
		c.Title = "Blog"
	}
	if c.Subtitle == "" {
		c.Subtitle = "Latest posts from " + c.Title
	}
	if c.Description == "" {
		c.Description = c.Subtitle
	}
	if c.Rights == "" {
		c.Rights = "Copyright " + c.Title + ". All rights reserved."
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.Publisher == "" {
		c.Publisher = c.Title
	}
	if c.Author.Name == "" {
		c.Author.Name = c.Title
	}
	if c.Author.URI == "" {
		c.Author.URI = c.SiteURL
	}
	if c.Contributor.Name == "" {
		c.Contributor = c.Author
	}
	if len(c.DefaultCategories) == 0 {
		c.DefaultCategories = []string{"Blog"}
	}
	if len(c.FeedCategories) == 0 {
		c.FeedCategories = []string{"Blog"}
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 50
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = DefaultExcerptLength
	}
	if c.TagDate == "" {
		c.TagDate = "2024"
	}
	if c.AtomPath == "" {
		c.AtomPath = "/atom.xml"
	}
	if c.RSSPath == "" {
		c.RSSPath = "/feed.xml"
	}
	if c.BlogPath == "" {
		c.BlogPath = "/blog"
	}
	if c.IconPath == "" {
		c.IconPath = "/favicon.ico"
	}
	if c.LogoPath == "" {
		c.LogoPath = "/logo.png"
	}
	if c.GeneratorName == "" {
		c.GeneratorName = "pubfeed"
	}
	if c.GeneratorVersion == "" {
		c.GeneratorVersion = "1.0"
	}
}

// SiteConfig holds all configuration for a pubfeed server.
type SiteConfig struct {
	Feed FeedConfig

	Addr string // Listen address (default ":3000")

	// Post source. The first one set wins: PostsFile, DatabasePath, APIBaseURL.
	PostsFile    string        // YAML file of posts
	DatabasePath string        // SQLite database path
	APIBaseURL   string        // Content API origin (default "http://localhost:8080")
	FetchTimeout time.Duration // Upstream request timeout (default 10s)
	PostCacheTTL time.Duration // Cache fetched posts; 0 disables caching

	MediaDir       string // Local uploads directory for real enclosure sizes
	MediaURLPrefix string // URL prefix MediaDir is served under (default "/uploads")

	PollLimit  int           // Feed requests allowed per client per PollWindow; 0 disables
	PollWindow time.Duration // default 1m
}

func (c *SiteConfig) setDefaults() {
	c.Feed.setDefaults()
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://localhost:8080"
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MediaURLPrefix == "" {
		c.MediaURLPrefix = "/uploads"
	}
	if c.PollWindow <= 0 {
		c.PollWindow = time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the source chosen from SiteConfig.
func WithSource(s Source) Option {
	return func(a *App) {
		a.source = s
	}
}

// WithHTTPClient sets the client used by the content API source.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithClock sets the time source used for the feed's updated stamp.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

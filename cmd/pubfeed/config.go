package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eringen/pubfeed"
)

// bindFlags declares every configuration key as a persistent flag. Each key
// can also come from the environment (PUBFEED_SITE_URL for --site-url) or
// from the config file.
func bindFlags(fs *pflag.FlagSet) {
	fs.String("site-url", "", "site origin, e.g. https://example.com")
	fs.String("title", "", "feed title")
	fs.String("subtitle", "", "feed subtitle")
	fs.String("rights", "", "copyright line")
	fs.String("language", "", "feed language (default en-US)")
	fs.String("author-name", "", "default author name")
	fs.String("author-email", "", "default author email")
	fs.String("author-uri", "", "default author URI")
	fs.StringSlice("default-categories", nil, "categories for posts that have none")
	fs.StringSlice("feed-categories", nil, "feed-level categories")
	fs.Int("max-items", 0, "maximum entries in the feed (default 50)")
	fs.Int("excerpt-length", 0, "summary length in characters (default 300)")
	fs.String("stylesheet-url", "", "XSL stylesheet referenced by the feed")
	fs.Bool("sanitize-html", false, "sanitize raw HTML blocks")

	fs.String("addr", "", "listen address (default :3000)")
	fs.String("posts-file", "", "read posts from a YAML file")
	fs.String("database", "", "read posts from a SQLite database")
	fs.String("api-base-url", "", "content API origin")
	fs.Duration("fetch-timeout", 0, "content API timeout (default 10s)")
	fs.Duration("cache-ttl", 0, "cache fetched posts for this long (0 disables)")
	fs.String("media-dir", "", "local uploads directory for real enclosure sizes")
	fs.String("media-url-prefix", "", "URL prefix media-dir is served under (default /uploads)")
	fs.Int("poll-limit", 0, "feed requests allowed per client per poll window (0 disables)")
	fs.Duration("poll-window", 0, "window for poll-limit (default 1m)")
}

// loadConfig merges flags, PUBFEED_* environment variables and the optional
// config file, in that order of precedence.
func loadConfig(cmd *cobra.Command) (pubfeed.SiteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("pubfeed")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return pubfeed.SiteConfig{}, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return pubfeed.SiteConfig{}, err
		}
	}

	return pubfeed.SiteConfig{
		Feed: pubfeed.FeedConfig{
			SiteURL:  v.GetString("site-url"),
			Title:    v.GetString("title"),
			Subtitle: v.GetString("subtitle"),
			Rights:   v.GetString("rights"),
			Language: v.GetString("language"),
			Author: pubfeed.Author{
				Name:  v.GetString("author-name"),
				Email: v.GetString("author-email"),
				URI:   v.GetString("author-uri"),
			},
			DefaultCategories: v.GetStringSlice("default-categories"),
			FeedCategories:    v.GetStringSlice("feed-categories"),
			MaxItems:          v.GetInt("max-items"),
			ExcerptLength:     v.GetInt("excerpt-length"),
			StylesheetURL:     v.GetString("stylesheet-url"),
			GeneratorVersion:  version,
			SanitizeRawHTML:   v.GetBool("sanitize-html"),
		},
		Addr:           v.GetString("addr"),
		PostsFile:      v.GetString("posts-file"),
		DatabasePath:   v.GetString("database"),
		APIBaseURL:     v.GetString("api-base-url"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),
		PostCacheTTL:   v.GetDuration("cache-ttl"),
		MediaDir:       v.GetString("media-dir"),
		MediaURLPrefix: v.GetString("media-url-prefix"),
		PollLimit:      v.GetInt("poll-limit"),
		PollWindow:     v.GetDuration("poll-window"),
	}, nil
}


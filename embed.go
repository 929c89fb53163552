package pubfeed

import "embed"

// stylesheetPath is where the bundled XSL stylesheet is served. Set
// FeedConfig.StylesheetURL to it to make the feed readable in browsers.
const stylesheetPath = "/atom.xsl"

//go:embed embedded/atom.xsl
var embeddedAssets embed.FS

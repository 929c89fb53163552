package pubfeed

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const atomContentType = "application/atom+xml; charset=utf-8"

// handleAtom serves the Atom feed. A failing source never fails the request:
// the error is logged and an empty, valid feed is served instead.
func (a *App) handleAtom(c echo.Context) error {
	limit := a.Generator.Config().MaxItems
	posts, err := a.source.ListPublished(c.Request().Context(), limit)
	if err != nil {
		a.metrics.upstreamFailures.Inc()
		c.Logger().Warnf("atom feed: %s, serving empty feed", fetchFailure(err))
		posts = nil
	}

	start := time.Now()
	doc := a.Generator.Generate(posts)
	a.metrics.generateSeconds.Observe(time.Since(start).Seconds())
	a.metrics.entries.Set(float64(doc.Entries))

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, atomContentType)
	h.Set("ETag", doc.ETag)
	h.Set(echo.HeaderLastModified, doc.LastModified.UTC().Format(http.TimeFormat))

	if etagMatches(c.Request().Header.Get("If-None-Match"), doc.ETag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, atomContentType, []byte(doc.XML))
}

// fetchFailure describes a source error for the log. Only a bare non-2xx
// response is reported by status alone.
func fetchFailure(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Err == nil && fe.StatusCode != 0 {
		return "upstream returned " + strconv.Itoa(fe.StatusCode)
	}
	return err.Error()
}

func (a *App) handleStylesheet(c echo.Context) error {
	data, err := embeddedAssets.ReadFile("embedded/atom.xsl")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/xsl; charset=utf-8", data)
}

// etagMatches implements the weak comparison If-None-Match uses.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

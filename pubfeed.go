// Package pubfeed serves a blog's published posts as an Atom 1.0 feed.
//
// Posts come from a Source (the content API, a SQLite database or a YAML
// file), are rendered by a Generator into a deterministic Atom document and
// served by an Echo app at /atom.xml. Upstream failures degrade to an empty
// but valid feed.
package pubfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the pubfeed HTTP application. It wires together the post source,
// the generator, middleware and routes.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Generator *Generator

	source       Source
	store        *Store
	httpClient   *http.Client
	now          func() time.Time
	registry     *prometheus.Registry
	limiter      *PollLimiter
	metrics      *feedMetrics
	customRoutes []func(*App)
}

// New creates a pubfeed App with the given configuration. The post source is
// opened here so configuration errors surface before the server starts.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()

	a := &App{
		Config:   cfg,
		Echo:     echo.New(),
		now:      time.Now,
		registry: prometheus.NewRegistry(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	if a.source == nil {
		src, err := a.openSource()
		if err != nil {
			return nil, err
		}
		a.source = src
	}
	if cfg.PostCacheTTL > 0 {
		cache := NewPostCache(a.source, cfg.PostCacheTTL)
		cache.FetchTimeout = cfg.FetchTimeout
		a.source = cache
	}

	a.Generator = NewGenerator(cfg.Feed,
		WithMedia(cfg.MediaDir, cfg.MediaURLPrefix),
		WithGeneratorClock(a.now),
	)
	a.metrics = newFeedMetrics(a.registry)
	if cfg.PollLimit > 0 {
		a.limiter = NewPollLimiter(cfg.PollLimit, cfg.PollWindow)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// openSource picks the post source from the configuration: a posts file,
// then a SQLite database, then the content API.
func (a *App) openSource() (Source, error) {
	switch {
	case a.Config.PostsFile != "":
		return &FileSource{Path: a.Config.PostsFile}, nil
	case a.Config.DatabasePath != "":
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("pubfeed: init store: %w", err)
		}
		a.store = store
		return store, nil
	}
	client := a.httpClient
	if client == nil {
		client = &http.Client{Timeout: a.Config.FetchTimeout}
	}
	return NewAPISource(a.Config.APIBaseURL, client), nil
}

// Source returns the source feeds are built from.
func (a *App) Source() Source {
	return a.source
}

func (a *App) setupRoutes() {
	e := a.Echo
	var mw []echo.MiddlewareFunc
	if a.limiter != nil {
		mw = append(mw, a.limiter.Middleware)
	}
	mw = append(mw, feedCacheHeaders)
	e.GET(a.Config.Feed.AtomPath, a.handleAtom, mw...)
	e.GET(stylesheetPath, a.handleStylesheet, feedCacheHeaders)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.registry,
	}))
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down.
func (a *App) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Echo.Start(a.Config.Addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

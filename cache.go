package pubfeed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// PostCache is an in-memory TTL cache in front of a Source. Concurrent misses
// share one upstream call, which is detached from any single caller's
// cancellation and bounded by FetchTimeout instead. Failed fetches are never
// cached.
type PostCache struct {
	FetchTimeout time.Duration


	mu      sync.RWMutex
	posts   []Post
	limit   int
	fetched time.Time
	ttl     time.Duration
	source  Source
	group   singleflight.Group
	now     func() time.Time
}

// NewPostCache creates a PostCache backed by the given Source.
func NewPostCache(s Source, ttl time.Duration) *PostCache {
	return &PostCache{FetchTimeout: 30 * time.Second, source: s, ttl: ttl, now: time.Now}
}

// valid reports whether the cached page can answer a request for limit posts.
// Callers must hold mu.
func (c *PostCache) valid(limit int) bool {
	return c.posts != nil && c.limit == limit && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.mu.Unlock()
}

// ListPublished returns cached posts when fresh, otherwise loads them from the
// underlying source.
func (c *PostCache) ListPublished(ctx context.Context, limit int) ([]Post, error) {
	c.mu.RLock()
	if c.valid(limit) {
		posts := c.posts
		c.mu.RUnlock()
		return posts, nil
	}
	c.mu.RUnlock()

	ch := c.group.DoChan(strconv.Itoa(limit), func() (any, error) {
		c.mu.RLock()
		if c.valid(limit) {
			posts := c.posts
			c.mu.RUnlock()
			return posts, nil
		}
		c.mu.RUnlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.FetchTimeout)
		defer cancel()
		posts, err := c.source.ListPublished(fetchCtx, limit)
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []Post{}
		}
		c.mu.Lock()
		c.posts = posts
		c.limit = limit
		c.fetched = c.now()
		c.mu.Unlock()
		return posts, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Post), nil
	}
}

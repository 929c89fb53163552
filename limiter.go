package pubfeed

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// PollLimiter caps how often a single client may fetch the feed within a
// sliding window. Well-behaved readers poll hourly; this stops broken ones
// from hammering the upstream content API.
type PollLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewPollLimiter allows max requests per client per window. Call Stop to end
// the background sweep.
func NewPollLimiter(max int, window time.Duration) *PollLimiter {
	l := &PollLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *PollLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.window)
			for key, hits := range l.hits {
				if kept := prune(hits, cutoff); len(kept) == 0 {
					delete(l.hits, key)
				} else {
					l.hits[key] = kept
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *PollLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Allow records a request from key and reports whether it is within the
// limit. When it is not, wait is how long until the oldest hit expires.
func (l *PollLimiter) Allow(key string) (ok bool, wait time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := prune(l.hits[key], now.Add(-l.window))
	if len(hits) >= l.max {
		l.hits[key] = hits
		return false, hits[0].Add(l.window).Sub(now)
	}
	l.hits[key] = append(hits, now)
	return true, 0
}

// Middleware rejects clients over the limit with 429 and a Retry-After hint.
func (l *PollLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, wait := l.Allow(c.RealIP())
		if !ok {
			secs := int(wait.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return echo.NewHTTPError(http.StatusTooManyRequests, "feed polled too often")
		}
		return next(c)
	}
}

package pubfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Source lists published posts, newest first, at most limit of them.
type Source interface {
	ListPublished(ctx context.Context, limit int) ([]Post, error)
}

// FetchError reports a failed request to the content API. Exactly one of
// StatusCode (non-2xx responses) and Err (transport and decoding failures) is
// set.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pubfeed: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("pubfeed: fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// APISource reads posts from the content API:
//
//	GET {BaseURL}/api/posts?status=published&limit=N&sort=-published_at
type APISource struct {
	BaseURL string
	Client  *http.Client
}

// NewAPISource returns an APISource for baseURL. A nil client means
// http.DefaultClient.
func NewAPISource(baseURL string, client *http.Client) *APISource {
	if client == nil {
		client = http.DefaultClient
	}
	return &APISource{BaseURL: baseURL, Client: client}
}

func (s *APISource) postsURL(limit int) string {
	q := url.Values{}
	q.Set("status", "published")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "-published_at")
	return strings.TrimRight(s.BaseURL, "/") + "/api/posts?" + q.Encode()
}

// ListPublished fetches one page of published posts. Every failure is
// returned as a *FetchError.
func (s *APISource) ListPublished(ctx context.Context, limit int) ([]Post, error) {
	u := s.postsURL(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pubfeed")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	var env postsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("decode: %w", err)}
	}
	if limit > 0 && len(env.Data) > limit {
		env.Data = env.Data[:limit]
	}
	return env.Data, nil
}

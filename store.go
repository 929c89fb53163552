package pubfeed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = errors.New("pubfeed: post not found")

const (
	statusPublished = "published"
	statusDraft     = "draft"
)

// Store wraps a SQLite database of posts. It serves as a Source when the feed
// runs next to the blog database instead of behind the content API.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the feed read while the blog writes; busy_timeout makes a
	// reader wait on a writer's lock instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    content_blocks TEXT NOT NULL DEFAULT '[]',
    featured_image TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'published',
    published_at TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT '',
    author_name TEXT NOT NULL DEFAULT '',
    categories TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS posts_status_published_at ON posts (status, published_at DESC);
`)
	return err
}

const postColumns = `slug, title, excerpt, content_blocks, featured_image, published_at, updated_at, author_name, categories, tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var p Post
	var blocks, categories, tags string
	if err := row.Scan(&p.Slug, &p.Title, &p.Excerpt, &blocks, &p.FeaturedImage,
		&p.PublishedAt, &p.UpdatedAt, &p.AuthorName, &categories, &tags); err != nil {
		return Post{}, err
	}
	if err := json.Unmarshal([]byte(blocks), &p.ContentBlocks); err != nil {
		return Post{}, fmt.Errorf("pubfeed: post %s: content blocks: %w", p.Slug, err)
	}
	var err error
	if p.Categories, err = decodeTerms(categories); err != nil {
		return Post{}, fmt.Errorf("pubfeed: post %s: categories: %w", p.Slug, err)
	}
	if p.Tags, err = decodeTerms(tags); err != nil {
		return Post{}, fmt.Errorf("pubfeed: post %s: tags: %w", p.Slug, err)
	}
	return p, nil
}

// ListPublished returns published posts ordered by publish date descending.
func (s *Store) ListPublished(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE status = ? ORDER BY published_at DESC, slug ASC LIMIT ?`,
		statusPublished, limit)
	if err != nil {
		return nil, fmt.Errorf("pubfeed: list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a single published post by slug.
func (s *Store) GetPost(ctx context.Context, slug string) (Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = ? AND status = ?`, slug, statusPublished)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// SavePost upserts p as a published post. Dates are normalised to RFC 3339
// UTC so that ordering by published_at is chronological.
func (s *Store) SavePost(p Post) error {
	if p.Slug == "" {
		return errors.New("pubfeed: post slug is required")
	}
	blocks, err := json.Marshal(p.ContentBlocks)
	if err != nil {
		return fmt.Errorf("pubfeed: post %s: content blocks: %w", p.Slug, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO posts (`+postColumns+`, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Title, p.Excerpt, string(blocks), p.FeaturedImage,
		normalizeDate(p.PublishedAt), normalizeDate(p.UpdatedAt), p.authorName(),
		encodeTerms(p.Categories), encodeTerms(p.Tags), statusPublished)
	return err
}

// Unpublish moves a post back to draft so it leaves the feed.
func (s *Store) Unpublish(slug string) error {
	res, err := s.db.Exec(`UPDATE posts SET status = ? WHERE slug = ?`, statusDraft, slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post by slug.
func (s *Store) DeletePost(slug string) error {
	_, err := s.db.Exec(`DELETE FROM posts WHERE slug = ?`, slug)
	return err
}

func normalizeDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format(time.RFC3339)
}

// encodeTerms stores terms as a JSON array, so a term may contain commas.
func encodeTerms(terms []string) string {
	terms = FilterEmpty(terms)
	if len(terms) == 0 {
		return ""
	}
	b, _ := json.Marshal(terms)
	return string(b)
}

// decodeTerms reads a stored term list. Values that are not a JSON array are
// treated as comma-delimited (",go,web,").
func decodeTerms(s string) ([]string, error) {
	if !strings.HasPrefix(s, "[") {
		return ParseTags(s), nil
	}
	var terms []string
	if err := json.Unmarshal([]byte(s), &terms); err != nil {
		return nil, err
	}
	return FilterEmpty(terms), nil
}

// ParseTags splits a comma-delimited term string (e.g. ",go,web,") into a slice.
func ParseTags(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

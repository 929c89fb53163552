package pubfeed

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// postFile is the on-disk shape read by FileSource:
//
//	posts:
//	  - slug: hello
//	    title: Hello
//	    published_at: 2025-01-01T00:00:00Z
//	    content_blocks:
//	      - type: paragraph
//	        content: Hi
type postFile struct {
	Posts []Post `yaml:"posts"`
}

// FileSource serves posts from a YAML file. The file is read on every call so
// edits show up without a restart.
type FileSource struct {
	Path string
}

// LoadPosts reads every post in the YAML file at path, in file order.
func LoadPosts(path string) ([]Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pubfeed: read posts file: %w", err)
	}
	var f postFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("pubfeed: parse posts file %s: %w", path, err)
	}
	return f.Posts, nil
}

// ListPublished returns the file's posts newest first. Posts with equal
// publish times keep their file order.
func (s *FileSource) ListPublished(ctx context.Context, limit int) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts, err := LoadPosts(s.Path)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return postTime(posts[i].PublishedAt).After(postTime(posts[j].PublishedAt))
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

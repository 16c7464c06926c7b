// Package builtin holds resolvers for the blogging platforms members
// commonly list on their profiles.
package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pders01/roster/internal/plugins"
)

// platform resolves profile URLs on one host whose path is a single
// account segment.
type platform struct {
	name     string
	priority int
	hosts    []string
	// handle extracts the account from the URL path segments; ok is false
	// when the URL is not a profile page.
	handle func(segments []string) (string, bool)
	feed   func(u *url.URL, handle string) string
}

func (p *platform) Name() string  { return p.name }
func (p *platform) Priority() int { return p.priority }

func (p *platform) CanHandle(raw string) bool {
	_, _, ok := p.match(raw)
	return ok
}

func (p *platform) Resolve(_ context.Context, raw string, _ *http.Client) (*plugins.SourceInfo, error) {
	u, handle, ok := p.match(raw)
	if !ok {
		return nil, fmt.Errorf("%s: not a profile URL: %s", p.name, raw)
	}

	return &plugins.SourceInfo{
		OriginalURL: raw,
		FeedURL:     p.feed(u, handle),
		Platform:    p.name,
		Metadata: map[string]string{
			"plugin": p.name,
			"handle": handle,
		},
	}, nil
}

func (p *platform) match(raw string) (*url.URL, string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !hostMatches(host, p.hosts) {
		return nil, "", false
	}
	handle, ok := p.handle(pathSegments(u.Path))
	if !ok {
		return nil, "", false
	}
	return u, handle, true
}

// hostMatches accepts exact hosts and "*.suffix" wildcards.
func hostMatches(host string, patterns []string) bool {
	for _, pattern := range patterns {
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}

func pathSegments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// singleSegment matches "/<handle>" but not reserved top-level paths.
func singleSegment(reserved ...string) func([]string) (string, bool) {
	return func(segments []string) (string, bool) {
		if len(segments) != 1 {
			return "", false
		}
		for _, r := range reserved {
			if segments[0] == r {
				return "", false
			}
		}
		return segments[0], true
	}
}

func NewZennPlugin() plugins.Plugin {
	return &platform{
		name:     "zenn",
		priority: 50,
		hosts:    []string{"zenn.dev"},
		handle:   singleSegment("feed", "topics", "articles", "books", "scraps"),
		feed: func(_ *url.URL, handle string) string {
			return "https://zenn.dev/" + handle + "/feed"
		},
	}
}

func NewQiitaPlugin() plugins.Plugin {
	return &platform{
		name:     "qiita",
		priority: 50,
		hosts:    []string{"qiita.com"},
		handle:   singleSegment("tags", "items", "organizations"),
		feed: func(_ *url.URL, handle string) string {
			return "https://qiita.com/" + handle + "/feed"
		},
	}
}

func NewNotePlugin() plugins.Plugin {
	return &platform{
		name:     "note",
		priority: 50,
		hosts:    []string{"note.com"},
		handle:   singleSegment("hashtag", "search"),
		feed: func(_ *url.URL, handle string) string {
			return "https://note.com/" + handle + "/rss"
		},
	}
}

func NewMediumPlugin() plugins.Plugin {
	return &platform{
		name:     "medium",
		priority: 50,
		hosts:    []string{"medium.com"},
		handle: func(segments []string) (string, bool) {
			if len(segments) != 1 || !strings.HasPrefix(segments[0], "@") {
				return "", false
			}
			return segments[0], true
		},
		feed: func(_ *url.URL, handle string) string {
			return "https://medium.com/feed/" + handle
		},
	}
}

func NewDevToPlugin() plugins.Plugin {
	return &platform{
		name:     "devto",
		priority: 50,
		hosts:    []string{"dev.to"},
		handle:   singleSegment("feed", "t", "search"),
		feed: func(_ *url.URL, handle string) string {
			return "https://dev.to/feed/" + handle
		},
	}
}

func NewHatenaBlogPlugin() plugins.Plugin {
	return &platform{
		name:     "hatenablog",
		priority: 40,
		hosts:    []string{"*.hatenablog.com", "*.hatenablog.jp", "*.hateblo.jp"},
		handle: func(segments []string) (string, bool) {
			return "", len(segments) == 0
		},
		feed: func(u *url.URL, _ string) string {
			return "https://" + strings.ToLower(u.Hostname()) + "/rss"
		},
	}
}

// NewRedditPlugin handles subreddit URLs; Reddit serves RSS when .rss is
// appended to the listing path.
func NewRedditPlugin() plugins.Plugin {
	return &platform{
		name:     "reddit",
		priority: 30,
		hosts:    []string{"reddit.com", "old.reddit.com"},
		handle: func(segments []string) (string, bool) {
			if len(segments) != 2 || segments[0] != "r" || strings.HasSuffix(segments[1], ".rss") {
				return "", false
			}
			return segments[1], true
		},
		feed: func(_ *url.URL, handle string) string {
			return "https://www.reddit.com/r/" + handle + "/.rss"
		},
	}
}

// RegisterAll adds every built-in resolver to registry.
func RegisterAll(registry *plugins.Registry) {
	registry.Register(
		NewZennPlugin(),
		NewQiitaPlugin(),
		NewNotePlugin(),
		NewMediumPlugin(),
		NewDevToPlugin(),
		NewHatenaBlogPlugin(),
		NewRedditPlugin(),
	)
}

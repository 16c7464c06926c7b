package plugins

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// SourceInfo is what a plugin learned about a declared source.
type SourceInfo struct {
	// Original URL as written in the members file
	OriginalURL string
	// FeedURL is the RSS/Atom endpoint to fetch
	FeedURL string
	// Platform names the blogging service, e.g. "zenn"
	Platform string
	// Metadata carries plugin specific details such as the account handle
	Metadata map[string]string
}

// Plugin maps profile or blog URLs of one platform to their feed URL.
type Plugin interface {
	Name() string

	// CanHandle returns true if this plugin understands the URL
	CanHandle(url string) bool

	// Resolve returns the feed location for url. Implementations may use
	// client for discovery requests.
	Resolve(ctx context.Context, url string, client *http.Client) (*SourceInfo, error)

	// Priority orders plugins that can handle the same URL; higher wins.
	Priority() int
}

// Registry manages all registered plugins
type Registry struct {
	plugins []Plugin
	client  *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		plugins: make([]Plugin, 0),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Register adds plugins and keeps them ordered by descending priority.
func (r *Registry) Register(plugins ...Plugin) {
	r.plugins = append(r.plugins, plugins...)
	sort.SliceStable(r.plugins, func(i, j int) bool {
		return r.plugins[i].Priority() > r.plugins[j].Priority()
	})
}

// FindPlugin returns the highest priority plugin that can handle url, or nil.
func (r *Registry) FindPlugin(url string) Plugin {
	for _, plugin := range r.plugins {
		if plugin.CanHandle(url) {
			return plugin
		}
	}
	return nil
}

// Resolve maps url to its feed. URLs no plugin handles are returned as is.
func (r *Registry) Resolve(ctx context.Context, url string) (*SourceInfo, error) {
	plugin := r.FindPlugin(url)
	if plugin == nil {
		return &SourceInfo{
			OriginalURL: url,
			FeedURL:     url,
			Metadata:    make(map[string]string),
		}, nil
	}

	return plugin.Resolve(ctx, url, r.client)
}

func (r *Registry) ListPlugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}

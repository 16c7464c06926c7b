package builtin

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/pders01/roster/internal/plugins"
)

const maxDiscoveryBody = 1 << 20

// feedLinkTypes are the media types a page advertises its feeds with.
var feedLinkTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/rdf+xml":   true,
	"application/feed+json": true,
}

// feedContentTypes are response types that mean the URL is the feed.
var feedContentTypes = map[string]bool{
	"application/rss+xml":   true,
	"application/atom+xml":  true,
	"application/rdf+xml":   true,
	"application/feed+json": true,
	"application/xml":       true,
	"text/xml":              true,
}

var feedExtensions = map[string]bool{
	".xml":  true,
	".rss":  true,
	".atom": true,
	".rdf":  true,
	".json": true,
}

var feedSegments = map[string]bool{
	"feed":  true,
	"feeds": true,
	"rss":   true,
	"atom":  true,
}

// discovery fetches source pages no platform resolver recognises and looks
// for the feed they advertise with <link rel="alternate">.
type discovery struct{}

// NewDiscoveryPlugin returns the lowest priority resolver. It issues one
// GET per resolved URL through the registry's client.
func NewDiscoveryPlugin() plugins.Plugin {
	return &discovery{}
}

func (d *discovery) Name() string  { return "discovery" }
func (d *discovery) Priority() int { return 0 }

// CanHandle accepts http(s) URLs whose path does not already look like a
// feed.
func (d *discovery) CanHandle(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !looksLikeFeed(u.Path)
}

func looksLikeFeed(p string) bool {
	p = strings.ToLower(strings.TrimSuffix(p, "/"))
	if feedExtensions[path.Ext(p)] {
		return true
	}
	return feedSegments[path.Base(p)]
}

func (d *discovery) Resolve(ctx context.Context, raw string, client *http.Client) (*plugins.SourceInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: %s: HTTP %d", raw, resp.StatusCode)
	}

	info := &plugins.SourceInfo{
		OriginalURL: raw,
		FeedURL:     raw,
		Metadata:    map[string]string{"plugin": d.Name()},
	}

	if isFeedContentType(resp.Header.Get("Content-Type")) {
		return info, nil
	}

	href := findFeedLink(io.LimitReader(resp.Body, maxDiscoveryBody))
	if href == "" {
		return info, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("discovery: bad feed link %q: %w", href, err)
	}
	info.FeedURL = resp.Request.URL.ResolveReference(ref).String()
	info.Platform = d.Name()
	return info, nil
}

func isFeedContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return feedContentTypes[mediaType]
}

// findFeedLink returns the href of the first alternate feed link in the
// document head, or "".
func findFeedLink(r io.Reader) string {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "body":
				return ""
			case "link":
				if href := alternateFeedHref(tok.Attr); href != "" {
					return href
				}
			}
		}
	}
}

func alternateFeedHref(attrs []html.Attribute) string {
	var rel, typ, href string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "rel":
			rel = strings.ToLower(a.Val)
		case "type":
			typ = strings.ToLower(strings.TrimSpace(a.Val))
		case "href":
			href = strings.TrimSpace(a.Val)
		}
	}

	alternate := false
	for _, r := range strings.Fields(rel) {
		if r == "alternate" {
			alternate = true
		}
	}
	if !alternate || !feedLinkTypes[typ] {
		return ""
	}
	return href
}

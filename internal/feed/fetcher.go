package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/storage"
)

// maxBodySize caps how much of a feed response is read.
const maxBodySize = 10 << 20

type Fetcher struct {
	client      *http.Client
	userAgent   string
	ignoreCache bool
}

func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Feed.HTTPTimeout,
		},
		userAgent: cfg.Feed.UserAgent,
	}
}

// SetIgnoreCache disables conditional request headers.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.ignoreCache = ignore
}

// Fetch performs one GET for url. When prev is non-nil its validators are
// sent; updated is false on 304 Not Modified, in which case body is nil.
func (f *Fetcher) Fetch(ctx context.Context, url string, prev *storage.SourceState) (body []byte, resp *http.Response, updated bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	if prev != nil && !f.ignoreCache {
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	resp, err = f.client.Do(req)
	if err != nil {
		return nil, nil, false, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp, false, nil
	}

	if resp.StatusCode >= 400 {
		return nil, resp, false, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp, false, fmt.Errorf("reading response: %w", err)
	}

	return body, resp, true, nil
}

// UpdateSourceMetadata records the response validators on state.
func (f *Fetcher) UpdateSourceMetadata(state *storage.SourceState, resp *http.Response) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		state.ETag = etag
	}

	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		state.LastModified = lastMod
	}

	state.LastFetched = time.Now()
}

// retry runs op up to attempts times, sleeping delay between attempts.
// It stops early when ctx is done.
func retry(ctx context.Context, attempts int, delay time.Duration, op func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

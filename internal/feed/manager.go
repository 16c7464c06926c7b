package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/plugins"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/validation"
)

// SourceCache remembers per-source validators and the last good items.
// *storage.Store implements it.
type SourceCache interface {
	GetSource(url string) (*storage.SourceState, bool, error)
	SaveSource(state *storage.SourceState) error
}

type Manager struct {
	fetcher      *Fetcher
	parser       *Parser
	config       *config.Config
	registry     *plugins.Registry
	urlValidator *validation.SourceURLValidator
	sources      SourceCache
}

type Option func(*Manager)

// WithSourceCache enables conditional requests and 304 reuse.
func WithSourceCache(cache SourceCache) Option {
	return func(m *Manager) {
		m.sources = cache
	}
}

// WithRegistry sets the resolvers applied to declared sources.
func WithRegistry(registry *plugins.Registry) Option {
	return func(m *Manager) {
		m.registry = registry
	}
}

func NewManager(cfg *config.Config, opts ...Option) *Manager {
	urlValidator := validation.NewSourceURLValidator()
	if cfg.Feed.AllowPrivateSources {
		urlValidator = validation.NewPermissiveSourceURLValidator()
	}

	m := &Manager{
		fetcher:      NewFetcher(cfg),
		parser:       NewParser(),
		config:       cfg,
		registry:     plugins.NewRegistry(cfg.Feed.HTTPTimeout),
		urlValidator: urlValidator,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetForceRefresh configures the manager to ignore ETag/Last-Modified headers
func (m *Manager) SetForceRefresh(force bool) {
	m.fetcher.SetIgnoreCache(force)
}

type SourceFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Result is the outcome of one Collect run.
type Result struct {
	Articles []storage.Article
	// Sources counts distinct source URLs attempted.
	Sources  int
	Failures []SourceFailure
}

func (r *Result) FailedURLs() []string {
	urls := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		urls = append(urls, f.URL)
	}
	return urls
}

// Collect fetches every member's sources and returns their articles sorted
// newest first. A URL declared by several members is fetched once and
// attributed to each of them. Failing sources contribute nothing; the only
// error is cancellation of ctx.
func (m *Manager) Collect(ctx context.Context, members []storage.Member) (*Result, error) {
	result := &Result{}

	// resolved[i][j] is the fetch URL of members[i].Sources[j], "" if
	// unusable or a repeat of an earlier source of the same member
	resolved := make([][]string, len(members))
	index := make(map[string]int)
	var unique []string

	for i, member := range members {
		resolved[i] = make([]string, len(member.Sources))
		// two declared URLs may resolve to the same feed
		own := make(map[string]bool, len(member.Sources))
		for j, declared := range member.Sources {
			url, err := m.resolveSource(ctx, declared)
			if err != nil {
				debuglog.WithFields(debuglog.Fields{"author": member.Name, "source": declared}).
					Warnf("skipping source: %v", err)
				result.Failures = append(result.Failures, SourceFailure{URL: declared, Error: err.Error()})
				continue
			}
			if own[url] {
				debuglog.WithFields(debuglog.Fields{"author": member.Name, "source": declared}).
					Debugf("already declared as %s", url)
				continue
			}
			own[url] = true
			resolved[i][j] = url
			if _, seen := index[url]; !seen {
				index[url] = len(unique)
				unique = append(unique, url)
			}
		}
	}

	docs := make([]*Document, len(unique))
	errs := make([]error, len(unique))

	var g errgroup.Group
	g.SetLimit(m.config.Feed.MaxConcurrentFetches)
	for k, url := range unique {
		g.Go(func() error {
			docs[k], errs[k] = m.fetchSource(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collecting feeds: %w", err)
	}

	result.Sources = len(unique)
	for k, err := range errs {
		if err != nil {
			result.Failures = append(result.Failures, SourceFailure{URL: unique[k], Error: err.Error()})
		}
	}

	for i, member := range members {
		for _, url := range resolved[i] {
			if url == "" {
				continue
			}
			if doc := docs[index[url]]; doc != nil {
				result.Articles = append(result.Articles, Normalize(member, doc, m.config.Feed.ExcerptLength)...)
			}
		}
	}

	SortArticles(result.Articles)
	return result, nil
}

func (m *Manager) resolveSource(ctx context.Context, declared string) (string, error) {
	url, err := m.urlValidator.ValidateAndNormalize(declared)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}

	info, err := m.registry.Resolve(ctx, url)
	if err != nil {
		debuglog.Warnf("resolving %s: %v; using it as is", url, err)
		return url, nil
	}
	if info.FeedURL == url {
		return url, nil
	}

	feedURL, err := m.urlValidator.ValidateAndNormalize(info.FeedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL %s from %s: %w", info.FeedURL, url, err)
	}
	debuglog.Debugf("resolved %s to %s via %s", url, feedURL, info.Platform)
	return feedURL, nil
}

// fetchSource fetches and parses one source with bounded retry, keeping the
// source cache up to date.
func (m *Manager) fetchSource(ctx context.Context, url string) (*Document, error) {
	log := debuglog.WithFields(debuglog.Fields{"source": url})

	var prev *storage.SourceState
	if m.sources != nil {
		state, ok, err := m.sources.GetSource(url)
		if err != nil {
			log.Warnf("reading source state: %v", err)
		} else if ok {
			prev = state
		}
	}

	state := &storage.SourceState{URL: url}
	if prev != nil {
		*state = *prev
	}

	conditional := prev
	var doc *Document
	err := retry(ctx, m.config.Feed.RetryAttempts, m.config.Feed.RetryDelay, func(attempt int) error {
		body, resp, updated, err := m.fetcher.Fetch(ctx, url, conditional)
		if err != nil {
			log.Debugf("attempt %d failed: %v", attempt, err)
			return err
		}

		if !updated {
			if prev == nil {
				// Nothing to reuse; ask again without validators.
				conditional = nil
				return fmt.Errorf("not modified but no cached copy")
			}
			m.fetcher.UpdateSourceMetadata(state, resp)
			doc = &Document{SiteTitle: prev.SiteTitle, Items: prev.Items}
			return nil
		}

		parsed, err := m.parser.Parse(body)
		if err != nil {
			log.Debugf("attempt %d failed: %v", attempt, err)
			return err
		}

		m.fetcher.UpdateSourceMetadata(state, resp)
		state.SiteTitle = parsed.SiteTitle
		state.Items = parsed.Items
		doc = parsed
		return nil
	})

	if err != nil {
		log.Warnf("source contributes no articles: %v", err)
		state.LastError = err.Error()
		state.ConsecutiveFailures++
		m.saveState(state)
		return nil, err
	}

	state.LastError = ""
	state.ConsecutiveFailures = 0
	m.saveState(state)
	return doc, nil
}

func (m *Manager) saveState(state *storage.SourceState) {
	if m.sources == nil {
		return
	}
	if state.LastFetched.IsZero() {
		state.LastFetched = time.Now()
	}
	if err := m.sources.SaveSource(state); err != nil {
		debuglog.Warnf("saving source state for %s: %v", state.URL, err)
	}
}

// SortArticles orders articles newest first. Articles published at the same
// instant keep their relative order.
func SortArticles(articles []storage.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PubDate.After(articles[j].PubDate)
	})
}

package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/storage"
)

// Aggregate is an adopted article collection, newest first.
type Aggregate struct {
	Articles   []storage.Article
	CapturedAt time.Time
	// Members is the directory that belongs with the articles. It is nil
	// when the source of the aggregate carried no member list.
	Members []storage.Member
}

// Listener is notified after every swap. It must not modify the articles.
type Listener func(Aggregate)

// Cache owns the process-wide aggregate. Entries expire purely by age.
type Cache struct {
	generator *Generator
	snapshots *storage.Snapshots
	ttl       time.Duration
	now       func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	entry     *Aggregate
	listeners []Listener
}

func NewCache(generator *Generator, snapshots *storage.Snapshots, ttl time.Duration) *Cache {
	return &Cache{
		generator: generator,
		snapshots: snapshots,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Subscribe registers fn to run after each swap.
func (c *Cache) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Current returns the cached aggregate regardless of age.
func (c *Cache) Current() (Aggregate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Aggregate{}, false
	}
	return *c.entry, true
}

func (c *Cache) fresh() ([]storage.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || c.now().Sub(c.entry.CapturedAt) >= c.ttl {
		return nil, false
	}
	return c.entry.Articles, true
}

// All returns the aggregate. An expired or missing entry is replaced from
// the snapshot file, or failing that from a live generator run.
// The returned slice is shared and must not be modified.
func (c *Cache) All(ctx context.Context) ([]storage.Article, error) {
	if articles, ok := c.fresh(); ok {
		return articles, nil
	}

	// One caller giving up must not fail the others waiting on the same load.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("load", func() (any, error) {
		if articles, ok := c.fresh(); ok {
			return articles, nil
		}
		agg, err := c.load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.swap(agg)
		return agg.Articles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]storage.Article), nil
}

func (c *Cache) load(ctx context.Context) (Aggregate, error) {
	articles, ok, err := c.snapshots.LoadArticles()
	switch {
	case err != nil:
		debuglog.Warnf("ignoring unreadable snapshot %s: %v", c.snapshots.ArticlesPath(), err)
	case ok && len(articles) > 0:
		feed.SortArticles(articles)
		debuglog.Debugf("adopted %d articles from snapshot", len(articles))
		agg := Aggregate{Articles: articles, CapturedAt: c.now()}
		users, ok, err := c.snapshots.LoadUsers()
		switch {
		case err != nil:
			debuglog.Warnf("ignoring unreadable snapshot %s: %v", c.snapshots.UsersPath(), err)
		case ok:
			agg.Members = users
		}
		return agg, nil
	}

	report, err := c.generator.Run(ctx, storage.TriggerFallback, true)
	if report == nil {
		return Aggregate{}, fmt.Errorf("building aggregate: %w", err)
	}
	if err != nil {
		debuglog.Warnf("aggregate built but not persisted: %v", err)
	}
	return c.adopt(report), nil
}

// Refresh runs the generator with persistence and swaps the result in.
// Concurrent refreshes share one run, which outlives any single caller's
// cancellation. The fresh aggregate is adopted even when persisting it
// fails; that error is still returned.
func (c *Cache) Refresh(ctx context.Context, trigger storage.RunTrigger) (*Report, error) {
	runCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		report, err := c.generator.Run(runCtx, trigger, true)
		if report != nil {
			c.swap(c.adopt(report))
		}
		return report, err
	})
	report, _ := v.(*Report)
	return report, err
}

func (c *Cache) adopt(report *Report) Aggregate {
	articles := append([]storage.Article(nil), report.Articles...)
	feed.SortArticles(articles)
	return Aggregate{
		Articles:   articles,
		CapturedAt: c.now(),
		Members:    report.Members,
	}
}

func (c *Cache) swap(agg Aggregate) {
	c.mu.Lock()
	c.entry = &agg
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(agg)
	}
}

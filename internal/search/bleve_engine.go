package search

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

const defaultLimit = 20

// fieldBoosts weights exact matches per field. Prefix matches get a
// slightly lower weight.
var fieldBoosts = []struct {
	field string
	boost float64
}{
	{"title", 4.0},
	{"excerpt", 2.0},
	{"tags", 1.5},
	{"site", 1.0},
	{"author", 1.0},
}

// BleveEngine keeps an in-memory index of the current aggregate. The index
// is rebuilt wholesale whenever a new aggregate is adopted.
type BleveEngine struct {
	mu       sync.RWMutex
	idx      bleve.Index
	articles []storage.Article
}

func NewBleveEngine() (*BleveEngine, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	return &BleveEngine{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.IncludeTermVectors = true

	excerpt := bleve.NewTextFieldMapping()
	excerpt.Analyzer = standard.Name

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = standard.Name

	site := bleve.NewTextFieldMapping()
	site.Analyzer = standard.Name

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("excerpt", excerpt)
	dm.AddFieldMappingsAt("tags", tags)
	dm.AddFieldMappingsAt("site", site)
	dm.AddFieldMappingsAt("author", author)

	im.DefaultMapping = dm
	return im
}

// Index replaces the indexed articles.
func (b *BleveEngine) Index(articles []storage.Article) error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	batch := idx.NewBatch()
	for i, a := range articles {
		err := batch.Index(strconv.Itoa(i), map[string]any{
			"title":   a.Title,
			"excerpt": a.Excerpt,
			"tags":    a.Tags,
			"site":    a.SiteName,
			"author":  a.Author,
		})
		if err != nil {
			_ = idx.Close()
			return fmt.Errorf("indexing %s: %w", a.Link, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("indexing batch: %w", err)
	}

	b.mu.Lock()
	old := b.idx
	b.idx = idx
	b.articles = articles
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// OnAggregateUpdated rebuilds the index from the adopted aggregate.
func (b *BleveEngine) OnAggregateUpdated(agg timeline.Aggregate) {
	if err := b.Index(agg.Articles); err != nil {
		debuglog.Errorf("rebuilding search index: %v", err)
		return
	}
	debuglog.Debugf("search index rebuilt with %d articles", len(agg.Articles))
}

// Search ranks articles against query. Queries shorter than two characters
// match nothing.
func (b *BleveEngine) Search(query string, limit int) ([]Result, error) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < 2 {
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	// Tokenize input and build an OR of per-term matches across key fields with boosts
	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, fb := range fieldBoosts {
			qm := bleve.NewMatchQuery(tok)
			qm.SetField(fb.field)
			qm.SetBoost(fb.boost)
			qs = append(qs, qm)

			qp := bleve.NewPrefixQuery(tok)
			qp.SetField(fb.field)
			qp.SetBoost(fb.boost * 0.9)
			qs = append(qs, qp)
		}
	}
	if len(qs) == 0 {
		return []Result{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(b.articles) {
			continue
		}
		out = append(out, Result{Article: b.articles[i], Score: h.Score})
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idx.Close()
}

// tokenize breaks text into lowercase searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 { // Skip single chars
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}

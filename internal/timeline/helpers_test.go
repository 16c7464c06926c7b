package timeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/storage"
)

const testMembersYAML = `
members:
  - name: alice
    tenure:
      start: {year: 2020, month: 1}
      end: {year: 2021, month: 6}
    tags: [rust]
    sources: [https://example.org/alice.xml]
  - name: bob
    tenure:
      start: {year: 2022, month: 4}
    tags: [go]
    sources: [https://example.org/bob.xml]
`

type stubCollector struct {
	mu     sync.Mutex
	calls  int
	result feed.Result
	err    error
}

func (s *stubCollector) Collect(_ context.Context, _ []storage.Member) (*feed.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	result := s.result
	result.Articles = append([]storage.Article(nil), s.result.Articles...)
	return &result, nil
}

func (s *stubCollector) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memoryRunLog struct {
	mu   sync.Mutex
	runs []*storage.RunRecord
}

func (m *memoryRunLog) SaveRun(run *storage.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRunLog) Runs() []*storage.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.RunRecord(nil), m.runs...)
}

func setupTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.TestConfig(t.TempDir())
	require.NoError(t, os.WriteFile(cfg.Directory.Path, []byte(testMembersYAML), 0o644))
	return cfg
}

var baseDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// makeArticles returns n articles, newest first, alternating authors.
func makeArticles(n int) []storage.Article {
	articles := make([]storage.Article, 0, n)
	for i := 0; i < n; i++ {
		author, tags := "alice", []string{"rust"}
		if i%2 == 1 {
			author, tags = "bob", []string{"go"}
		}
		articles = append(articles, storage.Article{
			Title:              fmt.Sprintf("article-%02d", i),
			Link:               fmt.Sprintf("https://example.org/%d", i),
			PubDate:            baseDate.Add(-time.Duration(i) * time.Hour),
			Author:             author,
			Tags:               tags,
			IsDuringEmployment: i%3 == 0,
		})
	}
	return articles
}

func titles(articles []storage.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

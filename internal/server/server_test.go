package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/search"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

const testSecret = "s3cret"

const testMembersYAML = `
members:
  - name: alice
    tenure:
      start: {year: 2020, month: 1}
      end: {year: 2021, month: 6}
    tags: [rust]
    sources: []
  - name: bob
    tenure:
      start: {year: 2022, month: 4}
    tags: [go]
    sources: []
`

type countingCollector struct {
	mu       sync.Mutex
	calls    int
	articles []storage.Article
	err      error
}

func (c *countingCollector) Collect(context.Context, []storage.Member) (*feed.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &feed.Result{Articles: append([]storage.Article(nil), c.articles...)}, nil
}

func (c *countingCollector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func makeArticles(n int) []storage.Article {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	articles := make([]storage.Article, 0, n)
	for i := 0; i < n; i++ {
		author, tags := "alice", []string{"rust"}
		if i%2 == 1 {
			author, tags = "bob", []string{"go"}
		}
		articles = append(articles, storage.Article{
			Title:              fmt.Sprintf("article %02d", i),
			Link:               fmt.Sprintf("https://example.org/%d", i),
			PubDate:            base.Add(-time.Duration(i) * time.Hour),
			Author:             author,
			Tags:               tags,
			IsDuringEmployment: i%4 == 0,
		})
	}
	return articles
}

type testEnv struct {
	server    *Server
	collector *countingCollector
	engine    *search.BleveEngine
}

func setupTestServer(t *testing.T, secret string, snapshot []storage.Article) *testEnv {
	t.Helper()
	cfg := config.TestConfig(t.TempDir())
	cfg.Server.RefreshSecret = secret
	require.NoError(t, os.WriteFile(cfg.Directory.Path, []byte(testMembersYAML), 0o644))

	snapshots := storage.NewSnapshots(cfg.Snapshot.Dir)
	if snapshot != nil {
		require.NoError(t, snapshots.SaveArticles(snapshot))
	}

	collector := &countingCollector{articles: makeArticles(3)}
	cache := timeline.NewCache(timeline.NewGenerator(cfg, collector, snapshots, nil), snapshots, cfg.Cache.TTL)

	directory, err := timeline.LoadDirectory(snapshots, cfg.Directory.Path)
	require.NoError(t, err)

	engine, err := search.NewBleveEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	cache.Subscribe(directory.OnAggregateUpdated)
	cache.Subscribe(engine.OnAggregateUpdated)

	return &testEnv{
		server:    New(cfg, cache, directory, engine),
		collector: collector,
		engine:    engine,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	env := setupTestServer(t, testSecret, nil)

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["indexed"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestArticles_Pagination(t *testing.T) {
	env := setupTestServer(t, testSecret, makeArticles(25))

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles?page=3&perPage=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	articles := body["articles"].([]any)
	assert.Len(t, articles, 1)
	assert.Equal(t, map[string]any{
		"total":      float64(25),
		"page":       float64(3),
		"perPage":    float64(12),
		"totalPages": float64(3),
	}, body["pagination"])

	// served from the snapshot, nothing fetched
	assert.Equal(t, 0, env.collector.Calls())
}

func TestArticles_DefaultsAndClamping(t *testing.T) {
	env := setupTestServer(t, testSecret, makeArticles(25))

	tests := []struct {
		query       string
		wantPage    float64
		wantPerPage float64
		wantLen     int
	}{
		{"", 1, 12, 12},
		{"?page=abc&perPage=-3", 1, 12, 12},
		{"?page=0", 1, 12, 12},
		{"?page=99", 3, 12, 1},
		{"?perPage=1000", 1, 100, 25},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			pagination := body["pagination"].(map[string]any)
			assert.Equal(t, tt.wantPage, pagination["page"])
			assert.Equal(t, tt.wantPerPage, pagination["perPage"])
			assert.Len(t, body["articles"].([]any), tt.wantLen)
		})
	}
}

func TestArticles_Filters(t *testing.T) {
	env := setupTestServer(t, testSecret, makeArticles(12))

	_, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles?tag=go", nil))
	assert.Equal(t, float64(6), body["pagination"].(map[string]any)["total"])

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles?author=alice&duringEmploymentOnly=true", nil))
	// alice has the even indexes; multiples of 4 are flagged
	assert.Equal(t, float64(3), body["pagination"].(map[string]any)["total"])

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles?author=nobody", nil))
	assert.Equal(t, []any{}, body["articles"])
	assert.Equal(t, float64(1), body["pagination"].(map[string]any)["totalPages"])
}

func TestArticles_GenerationFailure(t *testing.T) {
	env := setupTestServer(t, testSecret, nil)
	env.collector.err = context.DeadlineExceeded

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["error"])
}

func TestUsers(t *testing.T) {
	env := setupTestServer(t, testSecret, nil)

	_, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/users?name=alice", nil))
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["name"])

	rec, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/users?name=mallory", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	value, present := body["user"]
	assert.True(t, present)
	assert.Nil(t, value)

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].(map[string]any)["name"])
}

func TestRefresh_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		body   string
	}{
		{"no credentials", testSecret, "", ""},
		{"wrong header", testSecret, "nope", ""},
		{"wrong body", testSecret, "", `{"secret":"nope"}`},
		{"malformed body", testSecret, "", `{"secret":`},
		{"no secret configured", "", "", `{"secret":""}`},
		{"no secret configured with header", "", "anything", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, tt.secret, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/refresh", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("X-Refresh-Secret", tt.header)
			}
			rec, body := env.do(t, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "unauthorized", body["error"])
			assert.Equal(t, 0, env.collector.Calls())
		})
	}
}

func TestRefresh_Authorized(t *testing.T) {
	for _, viaHeader := range []bool{true, false} {
		t.Run(fmt.Sprintf("header=%v", viaHeader), func(t *testing.T) {
			env := setupTestServer(t, testSecret, nil)

			var req *http.Request
			if viaHeader {
				req = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
				req.Header.Set("X-Refresh-Secret", testSecret)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/api/refresh", strings.NewReader(`{"secret":"`+testSecret+`"}`))
				req.Header.Set("Content-Type", "application/json")
			}

			rec, body := env.do(t, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, true, body["success"])
			assert.Equal(t, float64(3), body["articles"])
			assert.NotEmpty(t, body["runId"])
			assert.Contains(t, body, "durationMs")
			assert.Equal(t, 1, env.collector.Calls())

			// the refreshed aggregate is served and indexed
			_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
			assert.Len(t, body["articles"].([]any), 3)
			assert.Equal(t, 1, env.collector.Calls())

			n, err := env.engine.DocCount()
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestRefresh_Failure(t *testing.T) {
	env := setupTestServer(t, testSecret, nil)
	env.collector.err = fmt.Errorf("upstream exploded")

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.Header.Set("X-Refresh-Secret", testSecret)
	rec, body := env.do(t, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "upstream exploded")
	assert.Contains(t, body, "durationMs")
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	env := setupTestServer(t, testSecret, nil)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, env.collector.Calls())
}

func TestSearch(t *testing.T) {
	env := setupTestServer(t, testSecret, makeArticles(4))

	// load the aggregate so the index is built
	_, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	_, body := env.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=rust&limit=10", nil))
	assert.Equal(t, "rust", body["query"])
	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "alice", first["article"].(map[string]any)["author"])
	assert.Greater(t, first["score"].(float64), 0.0)

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/api/search?q=r", nil))
	assert.Equal(t, []any{}, body["results"])
}

func TestParseQuery(t *testing.T) {
	values := url.Values{}
	values.Set("page", "2")
	values.Set("perPage", "5")
	values.Set("author", " alice ")
	values.Set("tag", "rust")
	values.Set("duringEmploymentOnly", "true")

	q := ParseQuery(values, 12, 100)
	assert.Equal(t, timeline.Query{Page: 2, PerPage: 5, Author: "alice", Tag: "rust", DuringEmploymentOnly: true}, q)

	q = ParseQuery(url.Values{"duringEmploymentOnly": {"maybe"}}, 12, 100)
	assert.Equal(t, timeline.Query{Page: 1, PerPage: 12}, q)
}

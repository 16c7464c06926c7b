package timeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/storage"
)

func TestGenerator_RunPersists(t *testing.T) {
	cfg := setupTestConfig(t)
	snapshots := storage.NewSnapshots(cfg.Snapshot.Dir)
	runs := &memoryRunLog{}
	collector := &stubCollector{result: feed.Result{
		Articles: makeArticles(3),
		Sources:  2,
		Failures: []feed.SourceFailure{{URL: "https://example.org/broken.xml", Error: "boom"}},
	}}

	gen := NewGenerator(cfg, collector, snapshots, runs)
	report, err := gen.Run(context.Background(), storage.TriggerGenerate, true)
	require.NoError(t, err)

	assert.True(t, report.Persisted)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Articles, 3)
	require.Len(t, report.Members, 2)

	articles, ok, err := snapshots.LoadArticles()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, titles(report.Articles), titles(articles))

	users, ok, err := snapshots.LoadUsers()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", users[0].Name)

	recorded := runs.Runs()
	require.Len(t, recorded, 1)
	assert.Equal(t, report.RunID, recorded[0].ID)
	assert.Equal(t, storage.TriggerGenerate, recorded[0].Trigger)
	assert.Equal(t, 3, recorded[0].Articles)
	assert.Equal(t, 2, recorded[0].Sources)
	assert.Equal(t, []string{"https://example.org/broken.xml"}, recorded[0].FailedSources)
	assert.True(t, recorded[0].Persisted)
	assert.Empty(t, recorded[0].Error)
}

func TestGenerator_RunWithoutPersist(t *testing.T) {
	cfg := setupTestConfig(t)
	snapshots := storage.NewSnapshots(cfg.Snapshot.Dir)
	collector := &stubCollector{result: feed.Result{Articles: makeArticles(2)}}

	report, err := NewGenerator(cfg, collector, snapshots, nil).Run(context.Background(), storage.TriggerFallback, false)
	require.NoError(t, err)
	assert.False(t, report.Persisted)

	_, ok, err := snapshots.LoadArticles()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerator_PersistFailure(t *testing.T) {
	cfg := setupTestConfig(t)
	// a regular file where the snapshot directory should be
	blocker := cfg.Snapshot.Dir
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	runs := &memoryRunLog{}
	collector := &stubCollector{result: feed.Result{Articles: makeArticles(2)}}

	report, err := NewGenerator(cfg, collector, storage.NewSnapshots(blocker), runs).Run(context.Background(), storage.TriggerGenerate, true)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Persisted)
	assert.Len(t, report.Articles, 2)

	recorded := runs.Runs()
	require.Len(t, recorded, 1)
	assert.NotEmpty(t, recorded[0].Error)
}

func TestGenerator_CollectFailure(t *testing.T) {
	cfg := setupTestConfig(t)
	runs := &memoryRunLog{}
	collector := &stubCollector{err: context.Canceled}

	report, err := NewGenerator(cfg, collector, storage.NewSnapshots(cfg.Snapshot.Dir), runs).Run(context.Background(), storage.TriggerRefresh, true)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, runs.Runs(), 1)
	assert.Equal(t, storage.TriggerRefresh, runs.Runs()[0].Trigger)
}

func TestGenerator_MissingMembersFile(t *testing.T) {
	cfg := setupTestConfig(t)
	cfg.Directory.Path = cfg.Directory.Path + ".missing"
	collector := &stubCollector{}

	report, err := NewGenerator(cfg, collector, storage.NewSnapshots(cfg.Snapshot.Dir), nil).Run(context.Background(), storage.TriggerGenerate, true)
	assert.Nil(t, report)
	assert.Error(t, err)
	assert.Equal(t, 0, collector.Calls())
}

func TestGenerator_EndToEnd(t *testing.T) {
	cfg := setupTestConfig(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Team Blog</title>
<item><title>during</title><link>https://example.org/a</link><pubDate>Sat, 01 May 2021 00:00:00 GMT</pubDate></item>
<item><title>after</title><link>https://example.org/b</link><pubDate>Thu, 01 Jul 2021 00:00:00 GMT</pubDate></item>
</channel></rss>`)
	}))
	defer server.Close()

	members := fmt.Sprintf(`
members:
  - name: alice
    tenure:
      start: {year: 2020, month: 1}
      end: {year: 2021, month: 6}
    tags: [rust]
    sources: [%s]
`, server.URL)
	require.NoError(t, os.WriteFile(cfg.Directory.Path, []byte(members), 0o644))

	gen := NewGenerator(cfg, feed.NewManager(cfg), storage.NewSnapshots(cfg.Snapshot.Dir), nil)
	report, err := gen.Run(context.Background(), storage.TriggerGenerate, true)
	require.NoError(t, err)

	require.Len(t, report.Articles, 2)
	assert.Equal(t, "after", report.Articles[0].Title)
	assert.False(t, report.Articles[0].IsDuringEmployment)
	assert.Equal(t, "during", report.Articles[1].Title)
	assert.True(t, report.Articles[1].IsDuringEmployment)
	assert.Equal(t, "Team Blog", report.Articles[1].SiteName)
	assert.Equal(t, []string{"rust"}, report.Articles[1].Tags)
}

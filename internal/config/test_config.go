package config

import (
	"path/filepath"
	"time"
)

// TestConfig returns a config suitable for testing. Paths live under dir
// and retries are fast; private sources are allowed so httptest servers on
// 127.0.0.1 pass validation.
func TestConfig(dir string) *Config {
	return &Config{
		Directory: DirectoryConfig{
			Path: filepath.Join(dir, "members.yaml"),
		},
		Snapshot: SnapshotConfig{
			Dir: filepath.Join(dir, "snapshot"),
		},
		Database: DatabaseConfig{
			Path:    filepath.Join(dir, "test.db"),
			Timeout: 1 * time.Second,
		},
		Feed: FeedConfig{
			HTTPTimeout:          5 * time.Second,
			RetryAttempts:        3,
			RetryDelay:           time.Millisecond,
			UserAgent:            "roster-test/1.0",
			MaxConcurrentFetches: 4,
			ExcerptLength:        200,
			AllowPrivateSources:  true,
		},
		Cache: CacheConfig{
			TTL: 1 * time.Minute,
		},
		Server: defaultConfig().Server,
		Log: LogConfig{
			Level: "off",
		},
	}
}

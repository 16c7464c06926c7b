package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "roster"

type Config struct {
	Directory DirectoryConfig `mapstructure:"directory"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

type DirectoryConfig struct {
	Path string `mapstructure:"path"`
}

type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FeedConfig struct {
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	RetryDelay           time.Duration `mapstructure:"retry_delay"`
	UserAgent            string        `mapstructure:"user_agent"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	ExcerptLength        int           `mapstructure:"excerpt_length"`
	AllowPrivateSources  bool          `mapstructure:"allow_private_sources"`
	// Discover looks for <link rel="alternate"> feeds on source pages no
	// built-in resolver recognises.
	Discover bool `mapstructure:"discover"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RefreshSecret  string        `mapstructure:"refresh_secret"`
	DefaultPerPage int           `mapstructure:"default_per_page"`
	MaxPerPage     int           `mapstructure:"max_per_page"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfigPath is where `roster config generate` writes and where Load
// looks first.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

func defaultConfig() *Config {
	dataDir := filepath.Join(xdg.DataHome, appName)

	return &Config{
		Directory: DirectoryConfig{
			Path: "members.yaml",
		},
		Snapshot: SnapshotConfig{
			Dir: filepath.Join(dataDir, "snapshot"),
		},
		Database: DatabaseConfig{
			Path:    filepath.Join(dataDir, "roster.db"),
			Timeout: 1 * time.Second,
		},
		Feed: FeedConfig{
			HTTPTimeout:          30 * time.Second,
			RetryAttempts:        3,
			RetryDelay:           1 * time.Second,
			UserAgent:            "roster/1.0 (member timeline aggregator)",
			MaxConcurrentFetches: 5,
			ExcerptLength:        200,
			AllowPrivateSources:  false,
			Discover:             true,
		},
		Cache: CacheConfig{
			TTL: 1 * time.Hour,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			DefaultPerPage: 12,
			MaxPerPage:     100,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every leaf key so environment overrides such as
// ROSTER_SERVER_ADDR resolve through AutomaticEnv.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("directory.path", cfg.Directory.Path)
	v.SetDefault("snapshot.dir", cfg.Snapshot.Dir)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("feed.http_timeout", cfg.Feed.HTTPTimeout)
	v.SetDefault("feed.retry_attempts", cfg.Feed.RetryAttempts)
	v.SetDefault("feed.retry_delay", cfg.Feed.RetryDelay)
	v.SetDefault("feed.user_agent", cfg.Feed.UserAgent)
	v.SetDefault("feed.max_concurrent_fetches", cfg.Feed.MaxConcurrentFetches)
	v.SetDefault("feed.excerpt_length", cfg.Feed.ExcerptLength)
	v.SetDefault("feed.allow_private_sources", cfg.Feed.AllowPrivateSources)
	v.SetDefault("feed.discover", cfg.Feed.Discover)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.refresh_secret", cfg.Server.RefreshSecret)
	v.SetDefault("server.default_per_page", cfg.Server.DefaultPerPage)
	v.SetDefault("server.max_per_page", cfg.Server.MaxPerPage)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(DefaultConfigPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The refresh secret is usually injected by the deploy environment.
	if err := v.BindEnv("server.refresh_secret", "ROSTER_SERVER_REFRESH_SECRET", "ROSTER_REFRESH_SECRET"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the aggregation pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Feed.RetryAttempts < 1 {
		return fmt.Errorf("feed.retry_attempts must be at least 1, got %d", c.Feed.RetryAttempts)
	}
	if c.Feed.MaxConcurrentFetches < 1 {
		return fmt.Errorf("feed.max_concurrent_fetches must be at least 1, got %d", c.Feed.MaxConcurrentFetches)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Server.DefaultPerPage < 1 {
		return fmt.Errorf("server.default_per_page must be at least 1, got %d", c.Server.DefaultPerPage)
	}
	if c.Server.MaxPerPage < c.Server.DefaultPerPage {
		return fmt.Errorf("server.max_per_page (%d) must not be below default_per_page (%d)", c.Server.MaxPerPage, c.Server.DefaultPerPage)
	}
	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Directory.Path = expandPath(cfg.Directory.Path)
	cfg.Snapshot.Dir = expandPath(cfg.Snapshot.Dir)
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// Save writes cfg as TOML. The refresh secret is never written out.
func Save(config *Config, path string) error {
	v := viper.New()

	v.Set("directory", map[string]interface{}{
		"path": config.Directory.Path,
	})
	v.Set("snapshot", map[string]interface{}{
		"dir": config.Snapshot.Dir,
	})
	v.Set("database", map[string]interface{}{
		"path":    config.Database.Path,
		"timeout": config.Database.Timeout.String(),
	})
	v.Set("feed", map[string]interface{}{
		"http_timeout":           config.Feed.HTTPTimeout.String(),
		"retry_attempts":         config.Feed.RetryAttempts,
		"retry_delay":            config.Feed.RetryDelay.String(),
		"user_agent":             config.Feed.UserAgent,
		"max_concurrent_fetches": config.Feed.MaxConcurrentFetches,
		"excerpt_length":         config.Feed.ExcerptLength,
		"allow_private_sources":  config.Feed.AllowPrivateSources,
		"discover":               config.Feed.Discover,
	})
	v.Set("cache", map[string]interface{}{
		"ttl": config.Cache.TTL.String(),
	})
	v.Set("server", map[string]interface{}{
		"addr":             config.Server.Addr,
		"default_per_page": config.Server.DefaultPerPage,
		"max_per_page":     config.Server.MaxPerPage,
		"read_timeout":     config.Server.ReadTimeout.String(),
		"write_timeout":    config.Server.WriteTimeout.String(),
	})
	v.Set("log", map[string]interface{}{
		"level": config.Log.Level,
		"file":  config.Log.File,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}

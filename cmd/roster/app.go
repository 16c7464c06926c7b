package main

import (
	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/feed"
	"github.com/pders01/roster/internal/plugins"
	"github.com/pders01/roster/internal/plugins/builtin"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

// app holds the pieces shared by the commands that aggregate.
type app struct {
	cfg       *config.Config
	store     *storage.Store
	snapshots *storage.Snapshots
	manager   *feed.Manager
	generator *timeline.Generator
}

// newApp wires the pipeline. The source state store is optional: bbolt
// holds an exclusive lock, so while a server runs a second process
// continues without conditional requests or the run log.
func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:       cfg,
		snapshots: storage.NewSnapshots(cfg.Snapshot.Dir),
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		debuglog.Warnf("continuing without source state: %v", err)
	} else {
		a.store = store
	}

	registry := plugins.NewRegistry(cfg.Feed.HTTPTimeout)
	builtin.RegisterAll(registry)
	if cfg.Feed.Discover {
		registry.Register(builtin.NewDiscoveryPlugin())
	}
	for _, p := range registry.ListPlugins() {
		debuglog.Debugf("source resolver %s (priority %d)", p.Name(), p.Priority())
	}

	opts := []feed.Option{feed.WithRegistry(registry)}
	var runs timeline.RunLog
	if a.store != nil {
		opts = append(opts, feed.WithSourceCache(a.store))
		runs = a.store
	}

	a.manager = feed.NewManager(cfg, opts...)
	a.generator = timeline.NewGenerator(cfg, a.manager, a.snapshots, runs)
	return a
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			debuglog.Warnf("closing store: %v", err)
		}
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/search"
	"github.com/pders01/roster/internal/server"
	"github.com/pders01/roster/internal/timeline"
)

var (
	flagAddr  string
	flagQuiet bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timeline and the directory over HTTP",
	Long: `Serve the JSON API:

  GET  /api/articles   paginated, filterable timeline
  GET  /api/users      member lookup or active members
  GET  /api/search     full-text search over the timeline
  POST /api/refresh    regenerate now (needs the refresh secret)
  GET  /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}
		if !flagQuiet {
			showBanner(Version, cfg.Server.Addr)
		}
		if cfg.Server.RefreshSecret == "" {
			debuglog.Warnf("no refresh secret configured; POST /api/refresh will refuse every request")
		}

		a := newApp(cfg)
		defer a.Close()

		directory, err := timeline.LoadDirectory(a.snapshots, cfg.Directory.Path)
		if err != nil {
			return err
		}

		engine, err := search.NewBleveEngine()
		if err != nil {
			return fmt.Errorf("creating search index: %w", err)
		}
		defer engine.Close()

		cache := timeline.NewCache(a.generator, a.snapshots, cfg.Cache.TTL)
		cache.Subscribe(directory.OnAggregateUpdated)
		cache.Subscribe(engine.OnAggregateUpdated)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			if _, err := cache.All(ctx); err != nil {
				debuglog.Warnf("warming aggregate: %v", err)
			}
		}()

		return server.New(cfg, cache, directory, engine).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "skip startup banner")
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pders01/roster/internal/config"
	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/search"
	"github.com/pders01/roster/internal/timeline"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the timeline and the member directory over HTTP.
type Server struct {
	cfg       *config.Config
	cache     *timeline.Cache
	directory *timeline.Directory
	searcher  search.Searcher
	router    *mux.Router
}

// New builds the router. searcher may be nil, in which case search
// answers with no results.
func New(cfg *config.Config, cache *timeline.Cache, directory *timeline.Directory, searcher search.Searcher) *Server {
	s := &Server{
		cfg:       cfg,
		cache:     cache,
		directory: directory,
		searcher:  searcher,
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/articles", s.handleArticles).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleUsers).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		debuglog.Infof("listening on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		debuglog.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

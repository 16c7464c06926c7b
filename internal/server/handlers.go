package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/roster/internal/debuglog"
	"github.com/pders01/roster/internal/search"
	"github.com/pders01/roster/internal/storage"
	"github.com/pders01/roster/internal/timeline"
)

const (
	refreshSecretHeader = "X-Refresh-Secret"
	maxRefreshBody      = 1 << 16
	defaultSearchLimit  = 20
)

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	dat, err := json.Marshal(payload)
	if err != nil {
		debuglog.Errorf("failed to marshal JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(dat)
}

func respondWithError(w http.ResponseWriter, code int, msg string) {
	respondWithJSON(w, code, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		debuglog.WithFields(debuglog.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond),
		}).Infof("request")
	})
}

// ParseQuery reads the article query parameters. Missing or malformed
// numbers fall back to page 1 and defaultPerPage; perPage is capped at
// maxPerPage.
func ParseQuery(values url.Values, defaultPerPage, maxPerPage int) timeline.Query {
	q := timeline.Query{
		Page:    positiveInt(values.Get("page"), 1),
		PerPage: positiveInt(values.Get("perPage"), defaultPerPage),
		Author:  strings.TrimSpace(values.Get("author")),
		Tag:     strings.TrimSpace(values.Get("tag")),
	}
	if maxPerPage > 0 && q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	q.DuringEmploymentOnly, _ = strconv.ParseBool(values.Get("duringEmploymentOnly"))
	return q
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if ds, ok := s.searcher.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			resp["indexed"] = n
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r.URL.Query(), s.cfg.Server.DefaultPerPage, s.cfg.Server.MaxPerPage)

	page, err := s.cache.Page(r.Context(), q)
	if err != nil {
		debuglog.Errorf("serving articles: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		member, ok := s.directory.Find(name)
		if !ok {
			respondWithJSON(w, http.StatusOK, map[string]any{"user": nil})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]any{"user": member})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]storage.Member{"users": s.directory.Active()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := positiveInt(r.URL.Query().Get("limit"), defaultSearchLimit)
	if maxLimit := s.cfg.Server.MaxPerPage; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	results := []search.Result{}
	if s.searcher != nil {
		found, err := s.searcher.Search(query, limit)
		if err != nil {
			debuglog.Errorf("searching %q: %v", query, err)
			respondWithError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		results = found
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

type refreshRequest struct {
	Secret string `json:"secret"`
}

type refreshResponse struct {
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs"`
	Articles   int    `json:"articles"`
	RunID      string `json:"runId,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		debuglog.Warnf("unauthorized refresh attempt from %s", r.RemoteAddr)
		respondWithJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthorized"})
		return
	}

	start := time.Now()
	report, err := s.cache.Refresh(r.Context(), storage.TriggerRefresh)
	resp := refreshResponse{DurationMs: time.Since(start).Milliseconds()}
	if report != nil {
		resp.Articles = len(report.Articles)
		resp.RunID = report.RunID
	}
	if err != nil {
		debuglog.Errorf("refresh failed: %v", err)
		resp.Error = err.Error()
		respondWithJSON(w, http.StatusInternalServerError, resp)
		return
	}

	resp.Success = true
	respondWithJSON(w, http.StatusOK, resp)
}

// authorized checks the shared secret from the header or the JSON body.
// Without a configured secret every request is refused.
func (s *Server) authorized(r *http.Request) bool {
	secret := s.cfg.Server.RefreshSecret
	if secret == "" {
		return false
	}

	provided := r.Header.Get(refreshSecretHeader)
	if provided == "" && r.Body != nil {
		var body refreshRequest
		data, err := io.ReadAll(io.LimitReader(r.Body, maxRefreshBody))
		if err == nil && len(data) > 0 {
			if err := json.Unmarshal(data, &body); err == nil {
				provided = body.Secret
			}
		}
	}

	return subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
}

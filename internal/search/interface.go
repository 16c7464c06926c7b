package search

import "github.com/pders01/roster/internal/storage"

// Result is one ranked article match.
type Result struct {
	Article storage.Article `json:"article"`
	Score   float64         `json:"score"`
}

// Searcher defines the minimal search API used by the HTTP server and CLI.
type Searcher interface {
	Search(query string, limit int) ([]Result, error)
}

// DebugStatser provides lightweight stats for visibility/debugging.
// Implemented by engines that can report index doc counts, etc.
type DebugStatser interface {
	DocCount() (int, error)
}

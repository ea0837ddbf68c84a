package core

import "context"

// SearchResult is a retrieved knowledge chunk with a relevance score.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// Searcher is the knowledge/RAG capability an agent handler may consult. The
// orchestration core forwards queries and neither implements nor depends on
// ranking internals.
type Searcher interface {
	Search(ctx context.Context, query, collection string, limit int) ([]SearchResult, error)
}

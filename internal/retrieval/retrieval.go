// Package retrieval builds hybrid (vector + keyword) queries against the
// document index and consolidates the results: oversampling, first-wins
// deduplication by document id, excerpt truncation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/models"
	"github.com/carebridge-ai/companion/provider"
)

// Excerpt lengths per mode. Hybrid results carry longer excerpts because
// they feed prompt context directly.
const (
	hybridExcerptLen  = 500
	keywordExcerptLen = 300
)

// Error is a typed retrieval failure: the query embedding or the index
// call failed. Callers surface it as a service error, never as an empty
// result set.
type Error struct {
	Stage string // "embedding" or "index"
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("retrieval %s: %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// IsRetrievalError reports whether err is a retrieval failure.
func IsRetrievalError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// Response carries one search's results and its wall-clock cost.
type Response struct {
	Results      []models.SearchResult `json:"results"`
	TotalResults int                   `json:"total_results"`
	SearchTimeMs float64               `json:"search_time_ms"`
}

// Retriever executes searches against the index. With an embedder it runs
// in hybrid mode; without one it degrades to keyword-only matching and
// never fails for embedding reasons.
type Retriever struct {
	index    index.Index
	embedder provider.Embedder
}

// New creates a Retriever. embedder may be nil for keyword-only mode.
func New(idx index.Index, embedder provider.Embedder) *Retriever {
	return &Retriever{index: idx, embedder: embedder}
}

// Hybrid reports whether semantic matching is available.
func (r *Retriever) Hybrid() bool { return r.embedder != nil }

// Embed produces the embedding used at ingest time, built from the
// document's title and content. Returns nil in keyword-only mode.
func (r *Retriever) Embed(ctx context.Context, doc models.KnowledgeDocument) ([]float32, error) {
	if r.embedder == nil {
		return nil, nil
	}
	vecs, err := r.embedder.CreateEmbedding(ctx, []string{doc.Title + ". " + doc.Content})
	if err != nil {
		return nil, &Error{Stage: "embedding", Err: err}
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, &Error{Stage: "embedding", Err: errors.New("provider returned no vector")}
	}
	return vecs[0], nil
}

// Search returns up to limit ranked, deduplicated documents for the query.
// Validation of query length and limit range happens at the HTTP layer.
func (r *Retriever) Search(ctx context.Context, query string, category models.QueryCategory, contentType models.ContentType, limit int) (*Response, error) {
	start := time.Now()

	q := index.Query{
		Text:        query,
		Category:    category,
		ContentType: contentType,
		// Oversample so deduplication can still fill the page.
		Size: limit * 2,
	}
	excerptLen := keywordExcerptLen
	if r.embedder != nil {
		vecs, err := r.embedder.CreateEmbedding(ctx, []string{query})
		if err != nil {
			return nil, &Error{Stage: "embedding", Err: err}
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, &Error{Stage: "embedding", Err: errors.New("provider returned no vector")}
		}
		q.Vector = vecs[0]
		excerptLen = hybridExcerptLen
	}

	hits, err := r.index.Search(ctx, q)
	if err != nil {
		return nil, &Error{Stage: "index", Err: err}
	}

	// The engine's blended score determines order; keep the first (highest
	// ranked) occurrence of each document id.
	seen := make(map[string]struct{}, len(hits))
	results := make([]models.SearchResult, 0, limit)
	for _, hit := range hits {
		if _, dup := seen[hit.DocumentID]; dup {
			continue
		}
		seen[hit.DocumentID] = struct{}{}
		results = append(results, models.SearchResult{
			DocumentID:     hit.DocumentID,
			Title:          hit.Title,
			ContentExcerpt: truncate(hit.Content, excerptLen),
			RelevanceScore: hit.Score,
			ContentType:    hit.ContentType,
			Category:       hit.Category,
			SourceURL:      hit.SourceURL,
		})
		if len(results) >= limit {
			break
		}
	}

	return &Response{
		Results:      results,
		TotalResults: len(results),
		SearchTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// truncate bounds s to n characters without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Package index defines the document index contract. Backends live in
// subpackages: opensearch for a managed cluster, embedded for an
// in-process index suited to development and tests.
package index

import (
	"context"
	"errors"

	"github.com/carebridge-ai/companion/models"
)

// ErrNotFound is returned by Delete when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Query expresses one search against the index. When Vector is non-nil the
// backend combines nearest-neighbor and keyword relevance in a single
// ranked list; otherwise it ranks by keyword relevance alone. Size is the
// number of candidates requested, already oversampled by the caller.
type Query struct {
	Text        string
	Vector      []float32
	Category    models.QueryCategory
	ContentType models.ContentType
	Size        int
}

// Hit is one ranked candidate. Score is on the engine's own scale.
type Hit struct {
	DocumentID  string
	Title       string
	Content     string
	ContentType models.ContentType
	Category    models.QueryCategory
	SourceURL   string
	Score       float64
}

// Stats summarizes index size.
type Stats struct {
	IndexName     string `json:"index_name"`
	DocumentCount int64  `json:"total_documents"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Index is the document index collaborator.
type Index interface {
	Index(ctx context.Context, doc models.KnowledgeDocument) (string, error)
	Search(ctx context.Context, q Query) ([]Hit, error)
	Delete(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// Package embedded is an in-process document index: bleve (mem-only) for
// keyword relevance, a plain vector slice with cosine similarity for
// semantic relevance, and reciprocal-rank fusion to blend the two. It
// serves development and test deployments without a managed cluster.
package embedded

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/models"
)

const rrfK = 60 // reciprocal-rank-fusion constant

type embedVec struct {
	docID string
	vec   []float32
}

// Store is a mutex-guarded in-memory index.
type Store struct {
	mu      sync.RWMutex
	bleve   bleve.Index
	docs    map[string]models.KnowledgeDocument
	vectors []embedVec
}

// New creates an empty embedded index.
func New() (*Store, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Store{
		bleve: idx,
		docs:  make(map[string]models.KnowledgeDocument),
	}, nil
}

// Index stores a document, generating an id when none is supplied.
// Re-indexing an existing id replaces the document.
func (s *Store) Index(_ context.Context, doc models.KnowledgeDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := doc.ID
	if docID == "" {
		docID = uuid.NewString()
	}
	doc.ID = docID
	if err := s.bleve.Index(docID, map[string]interface{}{
		"title":   doc.Title,
		"content": doc.Content,
	}); err != nil {
		return "", err
	}
	if _, exists := s.docs[docID]; exists {
		s.dropVectorLocked(docID)
	}
	s.docs[docID] = doc
	if len(doc.Embedding) > 0 {
		s.vectors = append(s.vectors, embedVec{docID: docID, vec: doc.Embedding})
	}
	return docID, nil
}

type scoredHit struct {
	docID string
	score float64
	rank  int
}

// Search ranks by keyword relevance, and when a query vector is present
// fuses keyword and vector rankings with RRF into one blended list.
func (s *Store) Search(_ context.Context, q index.Query) ([]index.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bmHits, err := s.keywordSearchLocked(q)
	if err != nil {
		return nil, err
	}

	var ranked []scoredHit
	if len(q.Vector) > 0 {
		vecHits := s.vectorSearchLocked(q)
		ranked = fuseRRF(bmHits, vecHits, q.Size)
	} else {
		ranked = bmHits
		if len(ranked) > q.Size {
			ranked = ranked[:q.Size]
		}
	}

	hits := make([]index.Hit, 0, len(ranked))
	for _, r := range ranked {
		doc, ok := s.docs[r.docID]
		if !ok {
			continue
		}
		hits = append(hits, index.Hit{
			DocumentID:  doc.ID,
			Title:       doc.Title,
			Content:     doc.Content,
			ContentType: doc.ContentType,
			Category:    doc.Category,
			SourceURL:   doc.SourceURL,
			Score:       r.score,
		})
	}
	return hits, nil
}

func (s *Store) keywordSearchLocked(q index.Query) ([]scoredHit, error) {
	title := bleve.NewMatchQuery(q.Text)
	title.SetField("title")
	title.SetBoost(3)
	content := bleve.NewMatchQuery(q.Text)
	content.SetField("content")
	query := bleve.NewDisjunctionQuery(title, content)

	// Oversample past the requested size so post-hoc metadata filtering
	// still fills the page.
	searchReq := bleve.NewSearchRequestOptions(query, q.Size*3, 0, false)
	res, err := s.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []scoredHit
	for _, hit := range res.Hits {
		doc, ok := s.docs[hit.ID]
		if !ok || !s.matchesFilters(doc, q) {
			continue
		}
		out = append(out, scoredHit{docID: hit.ID, score: hit.Score, rank: len(out) + 1})
		if len(out) >= q.Size {
			break
		}
	}
	return out, nil
}

func (s *Store) vectorSearchLocked(q index.Query) []scoredHit {
	type scored struct {
		id    string
		score float64
	}
	var scoreds []scored
	for _, v := range s.vectors {
		doc, ok := s.docs[v.docID]
		if !ok || !s.matchesFilters(doc, q) {
			continue
		}
		scoreds = append(scoreds, scored{id: v.docID, score: cosine(q.Vector, v.vec)})
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })
	var out []scoredHit
	for i, sc := range scoreds {
		out = append(out, scoredHit{docID: sc.id, score: sc.score, rank: i + 1})
		if len(out) >= q.Size {
			break
		}
	}
	return out
}

func (s *Store) matchesFilters(doc models.KnowledgeDocument, q index.Query) bool {
	if q.Category != "" && doc.Category != q.Category {
		return false
	}
	if q.ContentType != "" && doc.ContentType != q.ContentType {
		return false
	}
	return true
}

func fuseRRF(a, b []scoredHit, k int) []scoredHit {
	type agg struct {
		item  scoredHit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []scoredHit) {
		for _, h := range list {
			x, ok := m[h.docID]
			if !ok {
				m[h.docID] = &agg{item: h}
				x = m[h.docID]
			}
			x.score += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)
	fused := make([]scoredHit, 0, len(m))
	for _, v := range m {
		fused = append(fused, scoredHit{docID: v.item.docID, score: v.score})
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].score > fused[j].score })
	if len(fused) > k {
		fused = fused[:k]
	}
	for i := range fused {
		fused[i].rank = i + 1
	}
	return fused
}

// Delete removes a document by id.
func (s *Store) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return index.ErrNotFound
	}
	if err := s.bleve.Delete(documentID); err != nil {
		return err
	}
	delete(s.docs, documentID)
	s.dropVectorLocked(documentID)
	return nil
}

func (s *Store) dropVectorLocked(documentID string) {
	for i, v := range s.vectors {
		if v.docID == documentID {
			s.vectors = append(s.vectors[:i], s.vectors[i+1:]...)
			return
		}
	}
}

// Stats reports document count and an approximate content size.
func (s *Store) Stats(_ context.Context) (index.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var size int64
	for _, doc := range s.docs {
		size += int64(len(doc.Title) + len(doc.Content))
	}
	return index.Stats{
		IndexName:     "embedded",
		DocumentCount: int64(len(s.docs)),
		SizeBytes:     size,
	}, nil
}

// Ping always succeeds for the in-process index.
func (s *Store) Ping(_ context.Context) error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

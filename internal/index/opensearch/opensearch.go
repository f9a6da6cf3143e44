// Package opensearch is a minimal REST client for an OpenSearch-compatible
// cluster. It issues the hybrid (knn + keyword) query DSL directly over
// net/http; no official SDK is required.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-ai/companion/config"
	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/models"
)

// Hybrid relevance weights. The keyword clause is boosted relative to the
// vector clause so the engine blends both signals in one ranked list.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// Store talks to one index on an OpenSearch-compatible cluster.
type Store struct {
	endpoint   string
	indexName  string
	username   string
	password   string
	vectors    bool
	dimensions int
	client     *http.Client

	mu           sync.Mutex
	mappingReady bool
}

// New creates a Store from configuration. The index mapping is created
// lazily on first write.
func New(cfg config.OpenSearchConfig, vectors bool) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		indexName:  cfg.Index,
		username:   cfg.Username,
		password:   cfg.Password,
		vectors:    vectors,
		dimensions: cfg.EmbeddingDimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) mapping() map[string]interface{} {
	props := map[string]interface{}{
		"document_id":    map[string]interface{}{"type": "keyword"},
		"title":          map[string]interface{}{"type": "text", "analyzer": "standard"},
		"content":        map[string]interface{}{"type": "text", "analyzer": "standard"},
		"content_type":   map[string]interface{}{"type": "keyword"},
		"category":       map[string]interface{}{"type": "keyword"},
		"source_url":     map[string]interface{}{"type": "keyword"},
		"author":         map[string]interface{}{"type": "text"},
		"published_date": map[string]interface{}{"type": "date"},
		"tags":           map[string]interface{}{"type": "keyword"},
		"created_at":     map[string]interface{}{"type": "date"},
		"updated_at":     map[string]interface{}{"type": "date"},
	}
	settings := map[string]interface{}{
		"number_of_shards":   2,
		"number_of_replicas": 1,
	}
	if s.vectors {
		props["embedding"] = map[string]interface{}{
			"type":      "knn_vector",
			"dimension": s.dimensions,
			"method": map[string]interface{}{
				"name":       "hnsw",
				"space_type": "cosinesimil",
				"engine":     "faiss",
				"parameters": map[string]interface{}{
					"ef_construction": 512,
					"m":               16,
				},
			},
		}
		settings["knn"] = true
	}
	return map[string]interface{}{
		"settings": map[string]interface{}{"index": settings},
		"mappings": map[string]interface{}{"properties": props},
	}
}

func (s *Store) ensureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mappingReady {
		return nil
	}
	status, _, err := s.do(ctx, http.MethodHead, "/"+s.indexName, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		s.mappingReady = true
		return nil
	}
	status, body, err := s.do(ctx, http.MethodPut, "/"+s.indexName, s.mapping())
	if err != nil {
		return err
	}
	// Another writer may have created the index between the existence
	// check and the PUT.
	if status != http.StatusOK && !bytes.Contains(body, []byte("resource_already_exists")) {
		return fmt.Errorf("create index %s: status %d: %s", s.indexName, status, body)
	}
	log.Printf("[INDEX] created index %s (vectors=%t)", s.indexName, s.vectors)
	s.mappingReady = true
	return nil
}

// Index stores a document, generating an id when none is supplied.
func (s *Store) Index(ctx context.Context, doc models.KnowledgeDocument) (string, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return "", err
	}
	docID := doc.ID
	if docID == "" {
		docID = uuid.NewString()
	}
	now := time.Now().UTC()
	body := map[string]interface{}{
		"document_id":  docID,
		"title":        doc.Title,
		"content":      doc.Content,
		"content_type": doc.ContentType,
		"category":     doc.Category,
		"source_url":   doc.SourceURL,
		"author":       doc.Author,
		"tags":         doc.Tags,
		"created_at":   now,
		"updated_at":   now,
	}
	if doc.PublishedDate != nil {
		body["published_date"] = doc.PublishedDate
	}
	if s.vectors {
		if len(doc.Embedding) == 0 {
			return "", fmt.Errorf("document %s has no embedding", docID)
		}
		body["embedding"] = doc.Embedding
	}
	status, respBody, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/%s/_doc/%s?refresh=true", s.indexName, docID), body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("index document: status %d: %s", status, respBody)
	}
	return docID, nil
}

// Search executes one ranked query. With a vector present the request is
// the hybrid bool query: knn OR boosted multi_match, at least one clause
// required, plus term filters.
func (s *Store) Search(ctx context.Context, q index.Query) ([]index.Hit, error) {
	var should []interface{}
	if len(q.Vector) > 0 {
		should = append(should, map[string]interface{}{
			"knn": map[string]interface{}{
				"embedding": map[string]interface{}{
					"vector": q.Vector,
					"k":      q.Size,
				},
			},
		})
		should = append(should, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^3", "content"},
				"type":   "best_fields",
				"boost":  keywordWeight / vectorWeight,
			},
		})
	} else {
		should = append(should, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^3", "content"},
				"type":   "best_fields",
			},
		})
	}

	boolQuery := map[string]interface{}{
		"should":               should,
		"minimum_should_match": 1,
	}
	var filters []interface{}
	if q.Category != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"category": q.Category}})
	}
	if q.ContentType != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"content_type": q.ContentType}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]interface{}{
		"size":  q.Size,
		"query": map[string]interface{}{"bool": boolQuery},
	}

	status, respBody, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/%s/_search", s.indexName), body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search: status %d: %s", status, respBody)
	}

	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					DocumentID  string `json:"document_id"`
					Title       string `json:"title"`
					Content     string `json:"content"`
					ContentType string `json:"content_type"`
					Category    string `json:"category"`
					SourceURL   string `json:"source_url"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	hits := make([]index.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		docID := h.Source.DocumentID
		if docID == "" {
			docID = h.ID
		}
		hits = append(hits, index.Hit{
			DocumentID:  docID,
			Title:       h.Source.Title,
			Content:     h.Source.Content,
			ContentType: models.ContentType(h.Source.ContentType),
			Category:    models.QueryCategory(h.Source.Category),
			SourceURL:   h.Source.SourceURL,
			Score:       h.Score,
		})
	}
	return hits, nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	status, body, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/%s/_doc/%s?refresh=true", s.indexName, documentID), nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return index.ErrNotFound
	default:
		return fmt.Errorf("delete document: status %d: %s", status, body)
	}
}

// Stats reports primary document count and store size.
func (s *Store) Stats(ctx context.Context) (index.Stats, error) {
	status, body, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/%s/_stats", s.indexName), nil)
	if err != nil {
		return index.Stats{}, err
	}
	if status != http.StatusOK {
		return index.Stats{}, fmt.Errorf("stats: status %d: %s", status, body)
	}
	var resp struct {
		All struct {
			Primaries struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"primaries"`
		} `json:"_all"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return index.Stats{}, fmt.Errorf("parse stats response: %w", err)
	}
	return index.Stats{
		IndexName:     s.indexName,
		DocumentCount: resp.All.Primaries.Docs.Count,
		SizeBytes:     resp.All.Primaries.Store.SizeInBytes,
	}, nil
}

// Ping checks cluster health.
func (s *Store) Ping(ctx context.Context) error {
	status, body, err := s.do(ctx, http.MethodGet, "/_cluster/health", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("cluster health: status %d: %s", status, body)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse health response: %w", err)
	}
	if resp.Status == "red" {
		return fmt.Errorf("cluster status red")
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

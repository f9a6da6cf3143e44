package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/internal/telemetry"
	"github.com/carebridge-ai/companion/models"
)

const (
	maxQueryLen  = 500
	maxLimit     = 50
	defaultLimit = 10
)

// SearchRequest is the body of POST /knowledge/search.
type SearchRequest struct {
	Query       string `json:"query"`
	Category    string `json:"category"`
	ContentType string `json:"content_type"`
	Limit       int    `json:"limit"`
}

// UploadResponse is returned after indexing a document.
type UploadResponse struct {
	DocumentID    string `json:"document_id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// KnowledgeHandler serves search, ingestion, and stats endpoints.
type KnowledgeHandler struct {
	Retriever *retrieval.Retriever
	Index     index.Index
	Metrics   *telemetry.Metrics
}

func (h *KnowledgeHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.POST("/document", h.addDocument)
	g.DELETE("/document/:document_id", h.deleteDocument)
	g.GET("/stats", h.stats)
}

func (h *KnowledgeHandler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if len(req.Query) > maxQueryLen {
		return echo.NewHTTPError(http.StatusBadRequest, "query exceeds maximum length")
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 1 || req.Limit > maxLimit {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 50")
	}
	if req.Category != "" && !models.ValidCategory(req.Category) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}
	if req.ContentType != "" && !models.ValidContentType(req.ContentType) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown content type")
	}

	start := time.Now()
	resp, err := h.Retriever.Search(c.Request().Context(), req.Query,
		models.QueryCategory(req.Category), models.ContentType(req.ContentType), req.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error searching knowledge base").SetInternal(err)
	}
	if h.Metrics != nil {
		h.Metrics.SearchDuration.Observe(time.Since(start).Seconds())
		h.Metrics.SearchResults.Observe(float64(resp.TotalResults))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *KnowledgeHandler) addDocument(c echo.Context) error {
	var doc models.KnowledgeDocument
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if doc.Title == "" || doc.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and content are required")
	}
	if !models.ValidContentType(string(doc.ContentType)) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown content type")
	}
	if !models.ValidCategory(string(doc.Category)) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}

	ctx := c.Request().Context()
	if h.Retriever.Hybrid() {
		embedding, err := h.Retriever.Embed(ctx, doc)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Error adding document to knowledge base").SetInternal(err)
		}
		doc.Embedding = embedding
	}

	docID, err := h.Index.Index(ctx, doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error adding document to knowledge base").SetInternal(err)
	}
	return c.JSON(http.StatusOK, UploadResponse{
		DocumentID:    docID,
		Title:         doc.Title,
		Status:        "indexed",
		ChunksCreated: 1,
		Message:       "Document successfully added to knowledge base",
	})
}

func (h *KnowledgeHandler) deleteDocument(c echo.Context) error {
	documentID := c.Param("document_id")
	err := h.Index.Delete(c.Request().Context(), documentID)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Error deleting document").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":     "Document deleted successfully",
		"document_id": documentID,
	})
}

func (h *KnowledgeHandler) stats(c echo.Context) error {
	stats, err := h.Index.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error getting statistics").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"index_name":      stats.IndexName,
		"total_documents": stats.DocumentCount,
		"size_mb":         float64(stats.SizeBytes) / (1024 * 1024),
		"status":          "healthy",
	})
}

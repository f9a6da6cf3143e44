package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carebridge-ai/companion/config"
	"github.com/carebridge-ai/companion/internal/agent"
	"github.com/carebridge-ai/companion/internal/index/embedded"
	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/internal/session/inmemory"
	"github.com/carebridge-ai/companion/models"
)

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) Generate(context.Context, string, int, float64) (string, error) {
	return g.answer, g.err
}

type fixture struct {
	echo  *echo.Echo
	index *embedded.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := embedded.New()
	if err != nil {
		t.Fatalf("embedded index: %v", err)
	}
	sessions := inmemory.New()
	retriever := retrieval.New(idx, nil)
	gen := &stubGenerator{answer: "Nausea and fatigue are common; your care team can help manage them."}
	ag := agent.New(gen, retriever, sessions, agent.Options{}, log.New(io.Discard, "", 0))

	cfg := &config.Config{}
	e := NewEcho(cfg, &Deps{
		Agent:     ag,
		Retriever: retriever,
		Index:     idx,
		Sessions:  sessions,
		Generator: gen,
		Logger:    log.New(io.Discard, "", 0),
	})
	return &fixture{echo: e, index: idx}
}

func (f *fixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func seedDocument(t *testing.T, f *fixture) string {
	t.Helper()
	id, err := f.index.Index(context.Background(), models.KnowledgeDocument{
		Title:       "Coping With Nausea",
		Content:     "Nausea is a common side effect of chemotherapy. Small frequent meals help.",
		ContentType: models.ContentPatientGuide,
		Category:    models.CategorySideEffects,
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return id
}

func TestChatEndpoint(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec := f.request(t, http.MethodPost, "/api/v1/chat",
		`{"message":"The chemo gives me nausea, what other side effects should I expect?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.ChatResponse
	decode(t, rec, &resp)
	if resp.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if resp.Answer == "" {
		t.Fatalf("expected a non-empty answer")
	}
	if resp.QueryCategory != models.CategorySideEffects {
		t.Fatalf("expected side_effects category, got %s", resp.QueryCategory)
	}
	if resp.ConfidenceScore < 0.70 || resp.ConfidenceScore > 0.95 {
		t.Fatalf("confidence %.2f out of bounds", resp.ConfidenceScore)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Coping With Nausea" {
		t.Fatalf("unexpected sources: %#v", resp.Sources)
	}
	if resp.Disclaimer != models.Disclaimer {
		t.Fatalf("disclaimer missing")
	}
}

func TestChatSessionContinuity(t *testing.T) {
	f := newFixture(t)

	first := f.request(t, http.MethodPost, "/api/v1/chat", `{"message":"hello there"}`)
	var firstResp models.ChatResponse
	decode(t, first, &firstResp)

	body := fmt.Sprintf(`{"message":"another question","session_id":%q}`, firstResp.SessionID)
	second := f.request(t, http.MethodPost, "/api/v1/chat", body)
	var secondResp models.ChatResponse
	decode(t, second, &secondResp)
	if secondResp.SessionID != firstResp.SessionID {
		t.Fatalf("session id changed between turns")
	}
}

func TestChatExcludesSources(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec := f.request(t, http.MethodPost, "/api/v1/chat",
		`{"message":"nausea after chemo","include_sources":false}`)
	var resp models.ChatResponse
	decode(t, rec, &resp)
	if len(resp.Sources) != 0 {
		t.Fatalf("expected no citations, got %#v", resp.Sources)
	}
	// Shape parity: an empty list on the wire, not null.
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Fatalf("expected empty sources array in payload: %s", rec.Body.String())
	}
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/chat", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message: status %d", rec.Code)
	}
	var errResp map[string]string
	decode(t, rec, &errResp)
	if errResp["error"] == "" {
		t.Fatalf("expected error payload, got %s", rec.Body.String())
	}

	long := strings.Repeat("a", 2001)
	rec = f.request(t, http.MethodPost, "/api/v1/chat", fmt.Sprintf(`{"message":%q}`, long))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized message: status %d", rec.Code)
	}
}

func TestChatGenerationFailureHidesDetail(t *testing.T) {
	f := newFixture(t)
	idx := f.index
	sessions := inmemory.New()
	retriever := retrieval.New(idx, nil)
	gen := &stubGenerator{err: fmt.Errorf("api key sk-secret rejected")}
	ag := agent.New(gen, retriever, sessions, agent.Options{}, log.New(io.Discard, "", 0))
	f.echo = NewEcho(&config.Config{}, &Deps{
		Agent: ag, Retriever: retriever, Index: idx, Sessions: sessions,
		Generator: gen, Logger: log.New(io.Discard, "", 0),
	})

	rec := f.request(t, http.MethodPost, "/api/v1/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sk-secret") {
		t.Fatalf("provider detail leaked to client: %s", rec.Body.String())
	}
	var errResp map[string]string
	decode(t, rec, &errResp)
	if !strings.Contains(errResp["error"], "Please try again") {
		t.Fatalf("expected stable client message, got %q", errResp["error"])
	}
}

func TestClearSessionAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodDelete, "/api/v1/chat/session/never-existed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["session_id"] != "never-existed" || resp["message"] == "" {
		t.Fatalf("unexpected payload: %#v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec := f.request(t, http.MethodPost, "/api/v1/knowledge/search", `{"query":"nausea chemotherapy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp retrieval.Response
	decode(t, rec, &resp)
	if resp.TotalResults != 1 || resp.Results[0].Title != "Coping With Nausea" {
		t.Fatalf("unexpected results: %#v", resp)
	}
	if resp.SearchTimeMs < 0 {
		t.Fatalf("negative search time")
	}
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing query", `{}`},
		{"query too long", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", 501))},
		{"limit too high", `{"query":"x","limit":51}`},
		{"limit negative", `{"query":"x","limit":-1}`},
		{"bad category", `{"query":"x","category":"astrology"}`},
		{"bad content type", `{"query":"x","content_type":"podcast"}`},
	}
	for _, tc := range cases {
		rec := f.request(t, http.MethodPost, "/api/v1/knowledge/search", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/knowledge/document",
		`{"title":"Radiation Basics","content":"What to expect from radiation therapy.","content_type":"medical_article","category":"treatment"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: status %d: %s", rec.Code, rec.Body.String())
	}
	var added UploadResponse
	decode(t, rec, &added)
	if added.DocumentID == "" || added.Status != "indexed" || added.ChunksCreated != 1 {
		t.Fatalf("unexpected upload response: %#v", added)
	}

	rec = f.request(t, http.MethodPost, "/api/v1/knowledge/search", `{"query":"radiation therapy"}`)
	var found retrieval.Response
	decode(t, rec, &found)
	if found.TotalResults != 1 {
		t.Fatalf("document not searchable after add: %#v", found)
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/knowledge/document/"+added.DocumentID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.request(t, http.MethodDelete, "/api/v1/knowledge/document/"+added.DocumentID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d: %s", rec.Code, rec.Body.String())
	}
	var errResp map[string]string
	decode(t, rec, &errResp)
	if errResp["error"] != "Document not found" {
		t.Fatalf("unexpected error message %q", errResp["error"])
	}
}

func TestDocumentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/knowledge/document", `{"title":"","content":"x","content_type":"faq","category":"general"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title: status %d", rec.Code)
	}
	rec = f.request(t, http.MethodPost, "/api/v1/knowledge/document", `{"title":"t","content":"x","content_type":"podcast","category":"general"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad content type: status %d", rec.Code)
	}
	rec = f.request(t, http.MethodPost, "/api/v1/knowledge/document", `{"title":"t","content":"x","content_type":"faq","category":"astrology"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad category: status %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	seedDocument(t, f)

	rec := f.request(t, http.MethodGet, "/api/v1/knowledge/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rec, &resp)
	if resp["index_name"] != "embedded" || resp["total_documents"].(float64) != 1 {
		t.Fatalf("unexpected stats: %#v", resp)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	decode(t, rec, &resp)
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", resp.Status)
	}
	if resp.Services["generation"] != "available" {
		t.Fatalf("unexpected generation status %q", resp.Services["generation"])
	}
	if !strings.Contains(resp.Services["embedding"], "keyword search only") {
		t.Fatalf("expected degraded embedding status, got %q", resp.Services["embedding"])
	}

	rec = f.request(t, http.MethodGet, "/api/v1/health/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ping status %d", rec.Code)
	}

	rec = f.request(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCategoryEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/categories/query", "")
	var queryResp struct {
		Categories []categoryEntry `json:"categories"`
	}
	decode(t, rec, &queryResp)
	if len(queryResp.Categories) != len(models.QueryCategories) {
		t.Fatalf("expected %d categories, got %d", len(models.QueryCategories), len(queryResp.Categories))
	}
	labels := map[string]string{}
	for _, e := range queryResp.Categories {
		labels[e.Value] = e.Label
	}
	if labels["side_effects"] != "Side Effects" {
		t.Fatalf("unexpected label %q", labels["side_effects"])
	}

	rec = f.request(t, http.MethodGet, "/api/v1/categories/content", "")
	var contentResp struct {
		ContentTypes []categoryEntry `json:"content_types"`
	}
	decode(t, rec, &contentResp)
	if len(contentResp.ContentTypes) != len(models.ContentTypes) {
		t.Fatalf("expected %d content types, got %d", len(models.ContentTypes), len(contentResp.ContentTypes))
	}
}

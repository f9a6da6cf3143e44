package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", "gpt-4o-mini", "text-embedding-3-small", 5*time.Second)
	c.SetBaseURL(srv.URL)
	return c
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotBody completionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"content":"Here is some guidance."}}]}`))
	})

	answer, err := c.Generate(context.Background(), "hello", 256, 0.3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "Here is some guidance." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" || gotBody.MaxTokens != 256 || gotBody.Temperature != 0.3 {
		t.Fatalf("unexpected request: %#v", gotBody)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" || gotBody.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages: %#v", gotBody.Messages)
	}
}

func TestGenerateErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	if _, err := c.Generate(context.Background(), "hello", 0, 0); err == nil {
		t.Fatalf("expected error on non-200 status")
	}

	empty := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := empty.Generate(context.Background(), "hello", 0, 0); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}

func TestCreateEmbedding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "text-embedding-3-small" {
			t.Errorf("unexpected model %v", req["model"])
		}
		w.Write([]byte(`{"data":[{"object":"embedding","embedding":[0.1,0.2],"index":0},{"object":"embedding","embedding":[0.3,0.4],"index":1}]}`))
	})

	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embedding: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 || vecs[1][0] != float32(0.3) {
		t.Fatalf("unexpected vectors: %#v", vecs)
	}
}

func TestCreateEmbeddingEmptyInput(t *testing.T) {
	c := NewClient("k", "m", "e", time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("empty input should be a no-op, got %v, %v", vecs, err)
	}
}

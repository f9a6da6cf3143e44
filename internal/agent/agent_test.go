package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/internal/session/inmemory"
	"github.com/carebridge-ai/companion/models"
)

type fakeGenerator struct {
	answer string
	err    error

	lastPrompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type fakeIndex struct {
	hits []index.Hit
	err  error
}

func (f *fakeIndex) Index(context.Context, models.KnowledgeDocument) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeIndex) Search(context.Context, index.Query) ([]index.Hit, error) {
	return f.hits, f.err
}
func (f *fakeIndex) Delete(context.Context, string) error { return errors.New("not implemented") }
func (f *fakeIndex) Stats(context.Context) (index.Stats, error) {
	return index.Stats{}, errors.New("not implemented")
}
func (f *fakeIndex) Ping(context.Context) error { return nil }

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestAgent(gen *fakeGenerator, idx *fakeIndex) (*Agent, *inmemory.Store) {
	sessions := inmemory.New()
	retriever := retrieval.New(idx, nil)
	return New(gen, retriever, sessions, Options{}, quietLogger()), sessions
}

func TestConfidenceBounds(t *testing.T) {
	short := "ok"
	long := strings.Repeat("a", longAnswerThreshold+1)
	sources := []models.SearchResult{{DocumentID: "d1"}}

	cases := []struct {
		answer  string
		sources []models.SearchResult
		want    float64
	}{
		{short, nil, 0.70},
		{short, sources, 0.80},
		{long, nil, 0.75},
		{long, sources, 0.85},
	}
	for _, tc := range cases {
		got := confidence(tc.answer, tc.sources)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("confidence(len=%d, sources=%d) = %.2f, want %.2f", len(tc.answer), len(tc.sources), got, tc.want)
		}
		if got < confidenceBase || got > confidenceCap {
			t.Fatalf("confidence %.2f out of [%.2f, %.2f]", got, confidenceBase, confidenceCap)
		}
	}
}

func TestChatFullTurn(t *testing.T) {
	gen := &fakeGenerator{answer: "Lumps should always be checked by your care team."}
	idx := &fakeIndex{hits: []index.Hit{
		{DocumentID: "d1", Title: "Breast Changes", Content: "What to do about lumps.", ContentType: models.ContentPatientGuide, Score: 1.2, SourceURL: "https://example.org/guide"},
	}}
	ag, sessions := newTestAgent(gen, idx)

	resp, err := ag.Chat(context.Background(), "I found a lump, should I worry?", "", "user-1", true)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected a minted session id")
	}
	if resp.Answer != gen.answer {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.QueryCategory != models.CategorySymptoms {
		t.Fatalf("expected symptoms category, got %s", resp.QueryCategory)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Breast Changes" {
		t.Fatalf("unexpected sources: %#v", resp.Sources)
	}
	if math.Abs(resp.ConfidenceScore-0.80) > 1e-9 {
		t.Fatalf("expected confidence 0.80, got %.2f", resp.ConfidenceScore)
	}
	if resp.Disclaimer != models.Disclaimer {
		t.Fatalf("disclaimer missing")
	}

	history, err := sessions.History(context.Background(), resp.SessionID, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 || history[0].Role != models.RoleUser || history[1].Role != models.RoleAssistant {
		t.Fatalf("expected user+assistant turn persisted, got %#v", history)
	}
}

func TestChatExcludesSourcesWhenDisabled(t *testing.T) {
	gen := &fakeGenerator{answer: "General guidance."}
	idx := &fakeIndex{hits: []index.Hit{{DocumentID: "d1", Title: "Doc", Content: "c"}}}
	ag, _ := newTestAgent(gen, idx)

	resp, err := ag.Chat(context.Background(), "any question", "", "", false)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("expected no citations, got %#v", resp.Sources)
	}
	// Clients get an empty list, never null.
	if resp.Sources == nil {
		t.Fatalf("sources must be an empty slice, not nil")
	}
}

func TestChatCitationExcerptKeepsRunesIntact(t *testing.T) {
	gen := &fakeGenerator{answer: "Answer."}
	content := strings.Repeat("a", citationExcerptLen-1) + "é" + strings.Repeat("b", 400)
	idx := &fakeIndex{hits: []index.Hit{{DocumentID: "d1", Title: "Doc", Content: content}}}
	ag, _ := newTestAgent(gen, idx)

	resp, err := ag.Chat(context.Background(), "any question", "", "", true)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected one citation, got %d", len(resp.Sources))
	}
	excerpt := resp.Sources[0].Excerpt
	if !utf8.ValidString(excerpt) {
		t.Fatalf("citation excerpt is invalid UTF-8 (tail=%q)", excerpt[len(excerpt)-3:])
	}
	if n := utf8.RuneCountInString(excerpt); n != citationExcerptLen {
		t.Fatalf("expected %d characters, got %d", citationExcerptLen, n)
	}
}

func TestChatReusesSession(t *testing.T) {
	gen := &fakeGenerator{answer: "Answer."}
	ag, _ := newTestAgent(gen, &fakeIndex{})

	first, err := ag.Chat(context.Background(), "first question", "", "", true)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	second, err := ag.Chat(context.Background(), "second question", first.SessionID, "", true)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("session id changed: %s vs %s", first.SessionID, second.SessionID)
	}
	// The second turn's prompt sees the first exchange but never the
	// just-asked question as history.
	if !strings.Contains(gen.lastPrompt, "Patient: first question") {
		t.Fatalf("prompt missing prior history:\n%s", gen.lastPrompt)
	}
	if strings.Contains(gen.lastPrompt, "Patient: second question") {
		t.Fatalf("prompt leaked the current question into history:\n%s", gen.lastPrompt)
	}
}

func TestChatGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	ag, _ := newTestAgent(gen, &fakeIndex{})

	_, err := ag.Chat(context.Background(), "hello", "", "", true)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsGenerationError(err) {
		t.Fatalf("expected a generation error, got %v", err)
	}
}

func TestChatRetrievalFailure(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	ag, _ := newTestAgent(gen, &fakeIndex{err: errors.New("cluster down")})

	_, err := ag.Chat(context.Background(), "hello", "", "", true)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !retrieval.IsRetrievalError(err) {
		t.Fatalf("expected a retrieval error, got %v", err)
	}
}

package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/carebridge-ai/companion/models"
)

func TestFormatContextEmpty(t *testing.T) {
	got := formatContext(nil)
	if !strings.Contains(got, "No specific knowledge base sources available") {
		t.Fatalf("expected empty-context sentinel, got %q", got)
	}
}

func TestFormatContextNumbersSources(t *testing.T) {
	sources := []models.SearchResult{
		{Title: "Managing Fatigue", ContentType: models.ContentPatientGuide, ContentExcerpt: "Rest often."},
		{Title: "Radiation FAQ", ContentType: models.ContentFAQ, ContentExcerpt: "Common questions."},
	}
	got := formatContext(sources)
	if !strings.Contains(got, "Source 1: Managing Fatigue") {
		t.Fatalf("missing first source header:\n%s", got)
	}
	if !strings.Contains(got, "Source 2: Radiation FAQ") {
		t.Fatalf("missing second source header:\n%s", got)
	}
	if !strings.Contains(got, "Type: patient_guide") {
		t.Fatalf("missing content type line:\n%s", got)
	}
}

func TestFormatContextTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("x", contextExcerptLen+100)
	got := formatContext([]models.SearchResult{{Title: "Long", ContentExcerpt: long}})
	if strings.Contains(got, long) {
		t.Fatalf("excerpt was not truncated")
	}
	if !strings.Contains(got, strings.Repeat("x", contextExcerptLen)) {
		t.Fatalf("truncated excerpt missing")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("a", contextExcerptLen-1) + "é" + strings.Repeat("b", 20)
	got := truncate(s, contextExcerptLen)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is invalid UTF-8 (tail=%q)", got[len(got)-3:])
	}
	if n := utf8.RuneCountInString(got); n != contextExcerptLen {
		t.Fatalf("expected %d characters, got %d", contextExcerptLen, n)
	}
	if !strings.HasSuffix(got, "é") {
		t.Fatalf("boundary rune dropped, tail=%q", got[len(got)-3:])
	}

	short := "héllo"
	if truncate(short, 10) != short {
		t.Fatalf("short strings must pass through unchanged")
	}
}

func TestFormatHistory(t *testing.T) {
	if got := formatHistory(nil); got != "No previous conversation." {
		t.Fatalf("expected empty-history sentinel, got %q", got)
	}

	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "Is fatigue normal?"},
		{Role: models.RoleAssistant, Content: "Yes, it is common."},
	}
	got := formatHistory(history)
	want := "Patient: Is fatigue normal?\nAssistant: Yes, it is common."
	if got != want {
		t.Fatalf("formatHistory = %q, want %q", got, want)
	}
}

func TestBuildPromptContainsQuestion(t *testing.T) {
	prompt := buildPrompt("What is a lumpectomy?", nil, nil)
	if !strings.Contains(prompt, "What is a lumpectomy?") {
		t.Fatalf("prompt missing the question")
	}
	if !strings.Contains(prompt, "healthcare companion") {
		t.Fatalf("prompt missing the system instructions")
	}
}

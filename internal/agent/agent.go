// Package agent orchestrates a chat turn: classify the question, pull
// conversation history and retrieved context into a prompt, invoke the
// generation provider, and score a confidence heuristic.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/internal/session"
	"github.com/carebridge-ai/companion/models"
	"github.com/carebridge-ai/companion/provider"
)

// GenerationError wraps a generation provider failure. Not retried.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is a generation failure.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

const (
	citationExcerptLen     = 200
	contextDocuments       = 5
	defaultMaxTokens       = 1500
	defaultTemperature     = 0.3
	confidenceBase         = 0.70
	confidenceSourcesBonus = 0.10
	confidenceLengthBonus  = 0.05
	confidenceCap          = 0.95
	longAnswerThreshold    = 500
)

// Options tune the generation call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Agent is the conversation orchestrator.
type Agent struct {
	generator provider.Generator
	retriever *retrieval.Retriever
	sessions  session.Store
	opts      Options
	logger    *log.Logger
}

// New creates an Agent with injected collaborators.
func New(generator provider.Generator, retriever *retrieval.Retriever, sessions session.Store, opts Options, logger *log.Logger) *Agent {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	return &Agent{
		generator: generator,
		retriever: retriever,
		sessions:  sessions,
		opts:      opts,
		logger:    logger,
	}
}

// Generate renders the prompt from the question, history, and retrieved
// sources, invokes the provider, and returns the answer with a confidence
// score. The score is a relevance proxy, not a calibrated probability.
func (a *Agent) Generate(ctx context.Context, question string, history []models.ChatMessage, sources []models.SearchResult) (string, float64, error) {
	prompt := buildPrompt(question, history, sources)
	answer, err := a.generator.Generate(ctx, prompt, a.opts.MaxTokens, a.opts.Temperature)
	if err != nil {
		return "", 0, &GenerationError{Err: err}
	}
	return answer, confidence(answer, sources), nil
}

// confidence starts at a base value and rewards grounded, detailed
// answers. Capped below 1.0: never present full certainty for medical
// content.
func confidence(answer string, sources []models.SearchResult) float64 {
	score := confidenceBase
	if len(sources) > 0 {
		score += confidenceSourcesBonus
	}
	if len(answer) > longAnswerThreshold {
		score += confidenceLengthBonus
	}
	if score > confidenceCap {
		score = confidenceCap
	}
	return score
}

// Chat runs one full conversation turn.
func (a *Agent) Chat(ctx context.Context, message, sessionID, userID string, includeSources bool) (*models.ChatResponse, error) {
	start := time.Now()

	sessionID, err := a.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := a.sessions.Append(ctx, sessionID, models.RoleUser, message); err != nil {
		return nil, err
	}

	category := Classify(message)
	a.logger.Printf("session %s: query classified as %s", sessionID, category)

	// Prompt context excludes the message just appended.
	history, err := a.sessions.History(ctx, sessionID, session.DefaultHistoryWindow)
	if err != nil {
		return nil, err
	}
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	// Retrieval is deliberately unfiltered by the classified category; the
	// category informs the response envelope only.
	searchResp, err := a.retriever.Search(ctx, message, "", "", contextDocuments)
	if err != nil {
		return nil, err
	}
	sources := searchResp.Results

	answer, conf, err := a.Generate(ctx, message, history, sources)
	if err != nil {
		return nil, err
	}

	if err := a.sessions.Append(ctx, sessionID, models.RoleAssistant, answer); err != nil {
		return nil, err
	}

	citations := make([]models.SourceCitation, 0, len(sources))
	if includeSources {
		for _, src := range sources {
			excerpt := truncate(src.ContentExcerpt, citationExcerptLen)
			citations = append(citations, models.SourceCitation{
				Title:          src.Title,
				ContentType:    src.ContentType,
				RelevanceScore: src.RelevanceScore,
				SourceURL:      src.SourceURL,
				Excerpt:        excerpt,
			})
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	a.logger.Printf("session %s: generated response in %.0fms with confidence %.2f", sessionID, elapsed, conf)

	return &models.ChatResponse{
		Answer:          answer,
		SessionID:       sessionID,
		QueryCategory:   category,
		Sources:         citations,
		ConfidenceScore: conf,
		ResponseTimeMs:  elapsed,
		Disclaimer:      models.Disclaimer,
	}, nil
}

// Package provider defines the external AI collaborator contracts: text
// embedding and text generation. Concrete clients live in subpackages and
// are constructed once at startup, then injected by interface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carebridge-ai/companion/config"
	anthropic_provider "github.com/carebridge-ai/companion/provider/anthropic"
	openai_provider "github.com/carebridge-ai/companion/provider/openai"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Error wraps a provider failure with enough context for server-side logs.
// The message is never surfaced to clients verbatim.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewGenerator creates the generation client selected by configuration.
func NewGenerator(cfg config.ProvidersConfig) (Generator, error) {
	switch cfg.Generation {
	case "openai", "":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("providers.openai.api_key not set")
		}
		return newOpenAI(cfg.OpenAI), nil
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, errors.New("providers.anthropic.api_key not set")
		}
		return anthropic_provider.NewClient(
			cfg.Anthropic.APIKey,
			cfg.Anthropic.Model,
			cfg.Anthropic.Timeout,
		), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Generation)
	}
}

// NewEmbedder creates the embedding client, or nil when no embedding
// capability is configured (keyword-only retrieval mode).
func NewEmbedder(cfg config.ProvidersConfig) (Embedder, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, nil
	}
	return newOpenAI(cfg.OpenAI), nil
}

func newOpenAI(cfg config.OpenAIConfig) *openai_provider.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return openai_provider.NewClient(
		cfg.APIKey,
		cfg.CompletionModel,
		cfg.EmbeddingModel,
		timeout,
	)
}

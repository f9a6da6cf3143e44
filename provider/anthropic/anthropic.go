// Package anthropic_provider implements text generation via the Anthropic
// Messages API using the official SDK.
package anthropic_provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic Messages API. Generation only; embeddings
// come from a separate provider.
type Client struct {
	client *anthropic.Client
	model  string
}

// NewClient creates a new Anthropic client
func NewClient(apiKey, model string, timeout time.Duration) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	client := anthropic.NewClient(opts...)
	return &Client{client: &client, model: model}
}

// Generate sends a single-turn prompt and returns the concatenated text blocks.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return sb.String(), nil
}

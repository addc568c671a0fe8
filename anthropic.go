package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// anthropicBackend calls the Anthropic messages API through llmkit
type anthropicBackend struct {
	apiKey   string
	settings AgentSettings
	timeout  time.Duration
}

func newAnthropicBackend(apiKey string, settings AgentSettings, timeout time.Duration) (*anthropicBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is empty")
	}
	if settings.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}
	return &anthropicBackend{apiKey: apiKey, settings: settings, timeout: timeout}, nil
}

func (b *anthropicBackend) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	if schema == "" {
		return "", fmt.Errorf("structured generation requires a schema")
	}
	return b.prompt(ctx, systemPrompt, userPrompt, schema)
}

func (b *anthropicBackend) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return b.prompt(ctx, systemPrompt, userPrompt, "")
}

type anthropicReply struct {
	text string
	err  error
}

// prompt runs one request; llmkit is blocking, so the call runs in its own
// goroutine and an expired context returns without waiting for it.
func (b *anthropicBackend) prompt(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	settings := types.RequestSettings{
		Model:       b.settings.Model,
		MaxTokens:   b.settings.MaxTokens,
		Temperature: b.settings.Temperature,
	}

	replies := make(chan anthropicReply, 1)
	go func() {
		response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, b.apiKey, settings)
		if err != nil {
			replies <- anthropicReply{err: fmt.Errorf("anthropic request failed: %w", err)}
			return
		}
		if len(response.Content) == 0 {
			replies <- anthropicReply{err: fmt.Errorf("no content in response")}
			return
		}
		replies <- anthropicReply{text: response.Content[0].Text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case reply := <-replies:
		return reply.text, reply.err
	}
}

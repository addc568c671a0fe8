package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

// GenerationBackend is the model endpoint used by the researcher and editor agents
type GenerationBackend interface {
	// GenerateStructured returns the raw JSON document produced for schema
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error)
	// GenerateText returns a free-text completion
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Backends pairs the backend used by each agent, configured with its own model settings
type Backends struct {
	Researcher GenerationBackend
	Editor     GenerationBackend
}

// NewBackends creates the researcher and editor backends for the configured provider
func NewBackends(apiKey string, settings *Settings) (*Backends, error) {
	if apiKey == "" {
		apiKey = APIKeyFromEnv(settings.Provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for provider %q", settings.Provider)
	}

	switch settings.Provider {
	case ProviderAnthropic, "":
		researcher, err := newAnthropicBackend(apiKey, settings.Agents.Researcher, settings.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("creating researcher backend: %w", err)
		}
		editor, err := newAnthropicBackend(apiKey, settings.Agents.Editor, settings.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("creating editor backend: %w", err)
		}
		return &Backends{Researcher: researcher, Editor: editor}, nil
	case ProviderOpenAI:
		researcher, err := newOpenAIBackend(apiKey, settings.BaseURL, settings.Agents.Researcher, settings.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("creating researcher backend: %w", err)
		}
		editor, err := newOpenAIBackend(apiKey, settings.BaseURL, settings.Agents.Editor, settings.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("creating editor backend: %w", err)
		}
		return &Backends{Researcher: researcher, Editor: editor}, nil
	default:
		return nil, fmt.Errorf("provider %q not supported", settings.Provider)
	}
}

// APIKeyFromEnv returns the API key environment variable for a provider
func APIKeyFromEnv(provider string) string {
	if provider == ProviderOpenAI {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// withTimeout applies the configured per-request timeout, if any
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const structuredOutputName = "synthesized_story"

// openAIBackend implements GenerationBackend using the official openai-go SDK
// (chat completions). Any OpenAI-compatible endpoint works through base_url.
type openAIBackend struct {
	client   openai.Client
	settings AgentSettings
	timeout  time.Duration
}

func newOpenAIBackend(apiKey, baseURL string, settings AgentSettings, timeout time.Duration, extra ...option.RequestOption) (*openAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing")
	}
	if settings.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &openAIBackend{
		client:   openai.NewClient(opts...),
		settings: settings,
		timeout:  timeout,
	}, nil
}

func (o *openAIBackend) GenerateStructured(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	var schemaDoc map[string]any
	if err := json.Unmarshal([]byte(schema), &schemaDoc); err != nil {
		return "", fmt.Errorf("parsing output schema: %w", err)
	}

	params := o.params(systemPrompt, userPrompt)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   structuredOutputName,
				Schema: schemaDoc,
				Strict: openai.Bool(true),
			},
		},
	}
	return o.complete(ctx, params)
}

func (o *openAIBackend) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return o.complete(ctx, o.params(systemPrompt, userPrompt))
}

func (o *openAIBackend) params(systemPrompt, userPrompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.settings.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(o.settings.Temperature),
	}
	if o.settings.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.settings.MaxTokens))
	}
	return params
}

func (o *openAIBackend) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

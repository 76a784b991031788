// Package openai implements the generation capability on the OpenAI chat
// completions API or any compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragsody/internal/llm"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
)

// Config configures the chat completion generator.
type Config struct {
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Model       string
	Temperature float64
	// Timeout bounds each HTTP request made by the SDK.
	Timeout time.Duration
}

// Generator produces completions for single-message prompts.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float64
}

func New(cfg Config) (*Generator, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("openai: missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(cfg.BaseURL),
		// Retries are owned by llm.Resilient.
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(opts...)
	return &Generator{client: &client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Model returns the chat model used for completions.
func (g *Generator) Model() string { return g.model }

// Generate sends prompt as a single user message and returns the trimmed reply.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       g.model,
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		err = fmt.Errorf("openai: chat completion failed: %w", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode != http.StatusRequestTimeout {
			return "", llm.PermanentError(err)
		}
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Package llm wraps the OpenAI chat completions API behind the small
// completion interface consumed by the dialogue and intent packages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds completion client configuration.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string `yaml:"api_key"`

	// Model is the chat model to use. Default: gpt-4o-mini.
	Model string `yaml:"model"`

	// BaseURL overrides the API base URL (optional).
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each completion call. The caller falls back
	// to a canned reply when the deadline passes. Default: 10.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ApplyDefaults applies default values to empty config fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Client calls the OpenAI chat completions API.
//
// Client is safe for concurrent use.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a completion client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: API key is required")
	}
	cfg.ApplyDefaults()

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// Complete sends a single-turn chat completion and returns the trimmed
// message content. An empty system prompt omits the system message.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Package openai implements llm.Provider against the OpenAI chat
// completions API, or any endpoint compatible with it (litellm, Ollama,
// Azure, vLLM, ...).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketomega/pocket-omega/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Provider using the OpenAI-compatible protocol.
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	// Prevent indefinite hangs when the API is unresponsive.
	httpTimeout := time.Duration(config.HTTPTimeout) * time.Second
	clientConfig.HTTPClient = &http.Client{Timeout: httpTimeout}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a client using environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

// Generate sends a single system + user message pair and returns the
// model's text response. No retries — callers (the Core Agent, the Memory
// Agent) own retry policy per the model provider contract.
func (c *Client) Generate(ctx context.Context, promptContext string, system string) (string, error) {
	var messages []openailib.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openailib.ChatCompletionMessage{
			Role:    openailib.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openailib.ChatCompletionMessage{
		Role:    openailib.ChatMessageRoleUser,
		Content: promptContext,
	})

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if isAuthError(err) {
			return "", fmt.Errorf("%w: %v", llm.ErrModelInvalidKey, err)
		}
		return "", fmt.Errorf("%w: %v", llm.ErrModelUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", llm.ErrModelUnavailable)
	}

	return resp.Choices[0].Message.Content, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return fmt.Sprintf("openai (%s)", c.config.Model)
}

func isAuthError(err error) bool {
	var apiErr *openailib.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}

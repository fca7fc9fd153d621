// Package gemini implements llm.Provider against the Gemini API via
// google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketomega/pocket-omega/internal/llm"
	"google.golang.org/genai"
)

// Client implements llm.Provider using the Gemini API.
type Client struct {
	client *genai.Client
	config *Config
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{client: client, config: config}, nil
}

// NewClientFromEnv creates a client using environment variables.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(ctx, config)
}

// Generate sends a single system + user message pair and returns the
// model's text response. The rendered context is the sole "contents"
// value; the system prompt, if any, goes through
// GenerateContentConfig.SystemInstruction rather than folded into contents.
func (c *Client) Generate(ctx context.Context, promptContext string, system string) (string, error) {
	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(promptContext), config)
	if err != nil {
		if isAuthError(err) {
			return "", fmt.Errorf("%w: %v", llm.ErrModelInvalidKey, err)
		}
		return "", fmt.Errorf("%w: %v", llm.ErrModelUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", llm.ErrModelUnavailable)
	}
	return text, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return fmt.Sprintf("gemini (%s)", c.config.Model)
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthenticated") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "401")
}

// Package llm defines the Model Provider contract shared by every chat
// completion backend this agent can be wired to.
package llm

import (
	"context"
	"errors"
)

// Provider is the chat completion abstraction the Core Agent and Memory
// Agent call through. A Provider call is a single system + single user
// message round trip — it does not stream, does not call tools itself, and
// does not retry; retry policy belongs to the caller.
type Provider interface {
	// Generate sends promptContext as the sole user message, optionally
	// paired with a system prompt, and returns the model's text response.
	Generate(ctx context.Context, promptContext string, system string) (string, error)

	// Name identifies the provider for logging (e.g. "openai (gpt-4o)").
	Name() string
}

// ErrModelUnavailable wraps transport-level failures (network errors,
// non-2xx responses not attributable to bad credentials, context deadline
// exceeded).
var ErrModelUnavailable = errors.New("model unavailable")

// ErrModelInvalidKey wraps authentication failures (missing or rejected
// API key).
var ErrModelInvalidKey = errors.New("model provider rejected credentials")

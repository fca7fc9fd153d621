// Package gateway implements the Tool Gateway Client: session creation,
// tool search, and tool execution over HTTP against the external Tool
// Gateway service, using a plain http.Client with a per-call context
// timeout.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultSearchTimeout  = 30 * time.Second
	defaultExecuteTimeout = 60 * time.Second
)

// Client is a Tool Gateway HTTP client. Safe for concurrent use; session
// creation is single-flighted so two concurrent first-use calls collapse
// into one create_session request.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	searchTimeout  time.Duration
	executeTimeout time.Duration

	mu        sync.Mutex
	sessionID string
	createMu  sync.Mutex // held by ensureSession across a first-use create
}

// Option configures a Client.
type Option func(*Client)

// WithSearchTimeout overrides the default 30s search timeout.
func WithSearchTimeout(d time.Duration) Option {
	return func(c *Client) { c.searchTimeout = d }
}

// WithExecuteTimeout overrides the default 60s execute timeout.
func WithExecuteTimeout(d time.Duration) Option {
	return func(c *Client) { c.executeTimeout = d }
}

// NewClient creates a Tool Gateway client against baseURL (e.g.
// "http://localhost:8080").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		searchTimeout:  defaultSearchTimeout,
		executeTimeout: defaultExecuteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession requests a new session from the gateway and persists the
// id inside the client, overwriting any existing session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var body struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions/create", nil, "", 10*time.Second, &body); err != nil {
		return "", err
	}
	if !body.Success || body.SessionID == "" {
		return "", &ErrGatewayRejected{Body: "create_session returned success=false"}
	}

	c.mu.Lock()
	c.sessionID = body.SessionID
	c.mu.Unlock()
	return body.SessionID, nil
}

// ensureSession returns the current session id, creating one if absent.
// Single-flighted via c.createMu: a second caller that arrives while the
// first is still creating the session blocks on that mutex and then
// observes the result instead of issuing a redundant create_session call.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.createMu.Lock()
	defer c.createMu.Unlock()

	c.mu.Lock()
	if c.sessionID != "" {
		id := c.sessionID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	return c.CreateSession(ctx)
}

// SearchTools searches the gateway's tool index by query. Returns a
// JSON-encoded list of tool specs, or a human-readable "No tools found …"
// sentinel, mirroring the gateway's own response shape.
func (c *Client) SearchTools(ctx context.Context, query string) (string, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	reqBody, _ := json.Marshal(map[string]string{"query": query})
	var resp struct {
		Result any `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/mcp/search", reqBody, sessionID, c.searchTimeout, &resp); err != nil {
		return "", err
	}
	return renderResult(resp.Result, "No tools found for that query"), nil
}

// ExecuteTool invokes a named tool with args. If the gateway's result body
// is a JSON object (or a string that decodes to one), the "content" field
// is extracted; otherwise the body is returned verbatim.
func (c *Client) ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	reqBody, _ := json.Marshal(map[string]any{"tool_name": name, "args": args})
	var resp struct {
		Result any `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/mcp/execute", reqBody, sessionID, c.executeTimeout, &resp); err != nil {
		return "", err
	}
	return extractContent(resp.Result), nil
}

// ListTools lists all tools currently registered with the session.
func (c *Client) ListTools(ctx context.Context) (string, error) {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/mcp/tools", nil, sessionID, 10*time.Second, &resp); err != nil {
		return "", err
	}
	if len(resp.Tools) == 0 {
		return "No tools available", nil
	}
	var b strings.Builder
	for _, t := range resp.Tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// renderResult formats a generic "result" payload: a list is JSON-encoded,
// a string is returned as-is (it may already be a sentinel like "No tools
// found ..."), anything else falls back to empty/default.
func renderResult(result any, emptySentinel string) string {
	switch v := result.(type) {
	case nil:
		return emptySentinel
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return emptySentinel
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return emptySentinel
		}
		return string(encoded)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return emptySentinel
		}
		return string(encoded)
	}
}

// extractContent mirrors gateway_tools.py's execute_tool: when the result
// is (or decodes to) a JSON object, prefer its "content" field; otherwise
// fall back to the raw value.
func extractContent(result any) string {
	switch v := result.(type) {
	case map[string]any:
		if content, ok := v["content"]; ok {
			return fmt.Sprint(content)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	case string:
		var nested map[string]any
		if err := json.Unmarshal([]byte(v), &nested); err == nil {
			if content, ok := nested["content"]; ok {
				return fmt.Sprint(content)
			}
		}
		return v
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// doJSON performs an HTTP request with a per-call timeout derived from ctx,
// optionally attaching an X-Session-ID header, and decodes a JSON response
// body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, sessionID string, timeout time.Duration, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ErrGatewayRejected{Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
	}
	return nil
}

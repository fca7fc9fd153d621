package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSessionAndAutoCreateOnSearch(t *testing.T) {
	var sessionCreates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions/create":
			sessionCreates++
			json.NewEncoder(w).Encode(map[string]any{"success": true, "session_id": "sess-1"})
		case "/mcp/search":
			if r.Header.Get("X-Session-ID") != "sess-1" {
				t.Errorf("expected session header, got %q", r.Header.Get("X-Session-ID"))
			}
			json.NewEncoder(w).Encode(map[string]any{"result": []any{map[string]any{"name": "calc"}}})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.SearchTools(context.Background(), "calculator")
	if err != nil {
		t.Fatal(err)
	}
	if result == "" {
		t.Error("expected non-empty search result")
	}
	if sessionCreates != 1 {
		t.Errorf("expected exactly one session create, got %d", sessionCreates)
	}

	// Second call should reuse the session, not create another.
	if _, err := c.SearchTools(context.Background(), "calculator"); err != nil {
		t.Fatal(err)
	}
	if sessionCreates != 1 {
		t.Errorf("expected session reuse, got %d creates", sessionCreates)
	}
}

func TestExecuteToolExtractsContentFromNestedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions/create":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "session_id": "sess-1"})
		case "/mcp/execute":
			json.NewEncoder(w).Encode(map[string]any{"result": `{"content":"5"}`})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.ExecuteTool(context.Background(), "calc", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatal(err)
	}
	if result != "5" {
		t.Errorf("want extracted content %q, got %q", "5", result)
	}
}

func TestSearchToolsGatewayUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.SearchTools(context.Background(), "x"); err == nil {
		t.Error("expected error for unreachable gateway")
	}
}

// Package parser implements the Response Parser: JSON-with-fences
// extraction and transition validation against the model's raw text
// output.
//
// Fence-stripping tries a tagged fenced block first, then a bare fenced
// block, and otherwise falls back to the trimmed whole string.
package parser

import (
	"encoding/json"
	"strings"

	"github.com/pocketomega/pocket-omega/internal/action"
)

// Result is the parsed outcome of a single model response.
type Result struct {
	Response   string
	NextKind   action.Kind
	NextParams map[string]any
}

// Parse decodes raw model text produced while the state machine was in
// kind, applying kind-specific shape rules.
func Parse(raw string, kind action.Kind) (Result, error) {
	stripped := stripFence(raw)

	var payload map[string]any
	if err := json.Unmarshal([]byte(stripped), &payload); err != nil {
		return Result{}, invalidJSON(err)
	}

	response, ok := payload["response"].(string)
	if !ok || response == "" {
		return Result{}, missingField("response")
	}

	switch {
	case kind == action.AgentResponse:
		return Result{Response: response, NextKind: action.AwaitUserInput}, nil

	case kind.IsUpdateKind():
		return Result{Response: response, NextKind: kind}, nil

	default:
		rawNext, ok := payload["next_action"].(string)
		if !ok || rawNext == "" {
			return Result{}, missingField("next_action")
		}
		nextKind := action.Kind(rawNext)
		if !nextKind.IsValid() {
			return Result{}, unknownKind(rawNext)
		}

		var params map[string]any
		if raw, present := payload["next_action_parameters"]; present {
			m, ok := raw.(map[string]any)
			if !ok {
				if nextKind == action.AgentToolSearch {
					return Result{}, missingField("next_action_parameters")
				}
				// Non-search kinds tolerate a malformed/absent
				// parameters value; treat as no parameters.
			} else {
				params = m
			}
		} else if nextKind == action.AgentToolSearch {
			return Result{}, missingField("next_action_parameters")
		}

		return Result{Response: response, NextKind: nextKind, NextParams: params}, nil
	}
}

// stripFence trims the payload and removes a leading ```json or ``` fence
// marker and a trailing ``` marker, if present. If no fence is found the
// trimmed input is returned unchanged.
func stripFence(s string) string {
	s = strings.TrimSpace(s)

	if stripped, ok := stripTaggedFence(s, "```json"); ok {
		return stripped
	}
	if stripped, ok := stripTaggedFence(s, "```"); ok {
		return stripped
	}
	return s
}

func stripTaggedFence(s, tag string) (string, bool) {
	if !strings.HasPrefix(s, tag) {
		return "", false
	}
	body := strings.TrimPrefix(s, tag)
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimSuffix(strings.TrimRight(body, "\n"), "```")
	return strings.TrimSpace(body), true
}

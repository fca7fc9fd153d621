package agent

import (
	"context"
	"fmt"

	"github.com/pocketomega/pocket-omega/internal/action"
	"github.com/pocketomega/pocket-omega/internal/gateway"
	"github.com/pocketomega/pocket-omega/internal/llm"
	"github.com/pocketomega/pocket-omega/internal/parser"
	"github.com/pocketomega/pocket-omega/internal/prompt"
)

// handlerResult is the uniform shape every per-kind handler produces:
// the text to record on the action, the next kind, and any parameters the
// model attached to that transition.
type handlerResult struct {
	Text       string
	NextKind   action.Kind
	NextParams map[string]any
}

// handlerFunc runs one action kind to completion: it is either a model call
// (fetch the kind's prompt, generate, parse) or a deterministic gateway
// dispatch (AGENT_TOOL_SEARCH / AGENT_TOOL_EXECUTION).
type handlerFunc func(ctx context.Context, env *handlerEnv, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error)

// handlerEnv bundles the collaborators a handler needs, so the dispatch
// table's functions stay free of struct-field plumbing.
type handlerEnv struct {
	Provider llm.Provider
	Prompts  *prompt.Store
	Gateway  *gateway.Client
}

// handlerTable maps each kind to its handler closure: enum-driven dispatch
// rather than a long conditional cascade.
var handlerTable = map[action.Kind]handlerFunc{
	action.ProcessUserInput:                modelHandler,
	action.AgentPlanning:                   modelHandler,
	action.ProcessAgentToolSearchResult:    modelHandler,
	action.ProcessAgentToolExecutionResult: modelHandler,
	action.AgentResponse:                   modelHandler,
	action.AgentToolSearch:                 toolSearchHandler,
	action.AgentToolExecution:              toolExecutionHandler,
}

// dispatch runs the handler registered for kind.
func dispatch(ctx context.Context, env *handlerEnv, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error) {
	h, ok := handlerTable[kind]
	if !ok {
		return handlerResult{}, fmt.Errorf("agent: no handler registered for kind %s", kind)
	}
	return h(ctx, env, userInput, renderedContext, kind, params)
}

// modelHandler fetches kind's prompt as the system instruction, calls the
// Model Provider with the rendered context as the user content, and parses
// the result via the shared Response Parser.
func modelHandler(ctx context.Context, env *handlerEnv, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error) {
	system, err := env.Prompts.PromptFor(kind)
	if err != nil {
		return handlerResult{}, err
	}

	promptContext := renderedContext
	if promptContext == "" {
		promptContext = userInput
	}

	raw, err := env.Provider.Generate(ctx, promptContext, system)
	if err != nil {
		return handlerResult{}, err
	}

	res, err := parser.Parse(raw, kind)
	if err != nil {
		return handlerResult{}, err
	}
	return handlerResult{Text: res.Response, NextKind: res.NextKind, NextParams: res.NextParams}, nil
}

// toolSearchHandler is the deterministic AGENT_TOOL_SEARCH transition: it
// never calls the model. Required parameter: tool_search_query.
func toolSearchHandler(ctx context.Context, env *handlerEnv, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error) {
	query, _ := params["tool_search_query"].(string)
	if query == "" {
		return handlerResult{}, &InvalidAction{Kind: string(kind), Reason: "missing tool_search_query"}
	}

	text, err := env.Gateway.SearchTools(ctx, query)
	if err != nil {
		// GatewayUnavailable/GatewayRejected propagate as the action
		// result text so the loop can continue and the model sees the
		// failure on the next turn.
		text = err.Error()
	}
	return handlerResult{
		Text:       text,
		NextKind:   action.ProcessAgentToolSearchResult,
		NextParams: map[string]any{"tool_search_query": query},
	}, nil
}

// toolExecutionHandler is the deterministic AGENT_TOOL_EXECUTION
// transition. Required parameters: tool_name, tool_args.
func toolExecutionHandler(ctx context.Context, env *handlerEnv, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error) {
	name, _ := params["tool_name"].(string)
	if name == "" {
		return handlerResult{}, &InvalidAction{Kind: string(kind), Reason: "missing tool_name"}
	}
	args, ok := params["tool_args"].(map[string]any)
	if !ok {
		return handlerResult{}, &InvalidAction{Kind: string(kind), Reason: "missing tool_args"}
	}

	text, err := env.Gateway.ExecuteTool(ctx, name, args)
	if err != nil {
		text = err.Error()
	}
	return handlerResult{
		Text:     text,
		NextKind: action.ProcessAgentToolExecutionResult,
		NextParams: map[string]any{
			"tool_name": name,
			"tool_args": args,
		},
	}, nil
}

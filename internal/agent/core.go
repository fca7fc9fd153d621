// Package agent implements the Core Agent (the Action State Machine) and
// the Memory Agent (the background derived-memory updater) described by
// the runtime's action-graph design: a bounded loop alternating between a
// reasoning model and an external tool gateway, recording every step into
// a DAG, while a concurrent worker keeps per-node summaries warm.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pocketomega/pocket-omega/internal/action"
	"github.com/pocketomega/pocket-omega/internal/dag"
	"github.com/pocketomega/pocket-omega/internal/gateway"
	"github.com/pocketomega/pocket-omega/internal/llm"
	"github.com/pocketomega/pocket-omega/internal/parser"
	"github.com/pocketomega/pocket-omega/internal/prompt"
)

// CoreAgent drives the bounded action loop for a single process lifetime.
// It holds no per-step state beyond what is passed through RunStep's local
// variables; all durable state lives in the DAG.
type CoreAgent struct {
	DAG              *dag.DAG
	env              *handlerEnv
	MaxActions       int
	ActionMaxRetries int

	// OnBacktrack, if set, is invoked after a successful Backtrack so the
	// caller (normally main.go, wiring in the Memory Agent) can schedule
	// the supplemental branch-backtrack-summary generation without the
	// Core Agent importing the Memory Agent directly.
	OnBacktrack func(leavingNodeID, notes, contextAtBacktrack string)
}

// NewCoreAgent wires a Core Agent against its collaborators. maxActions and
// actionMaxRetries default to 10 and 3 when <= 0.
func NewCoreAgent(d *dag.DAG, provider llm.Provider, prompts *prompt.Store, gw *gateway.Client, maxActions, actionMaxRetries int) *CoreAgent {
	if maxActions <= 0 {
		maxActions = 10
	}
	if actionMaxRetries <= 0 {
		actionMaxRetries = 3
	}
	return &CoreAgent{
		DAG: d,
		env: &handlerEnv{
			Provider: provider,
			Prompts:  prompts,
			Gateway:  gw,
		},
		MaxActions:       maxActions,
		ActionMaxRetries: actionMaxRetries,
	}
}

// RunStep executes one full user turn: append the user line, drive the
// bounded action loop until AWAIT_USER_INPUT or the action budget is
// exhausted, then append a STEP_SUMMARY closing the step.
func (c *CoreAgent) RunStep(ctx context.Context, userInput string) error {
	if _, err := c.DAG.AddAction(dag.AddActionParams{
		Content: userInput,
		Kind:    action.UserInput,
	}); err != nil {
		return fmt.Errorf("agent: append USER_INPUT: %w", err)
	}

	currentKind := action.ProcessUserInput
	prevKind := action.ProcessUserInput
	var params map[string]any

	actionCount := 0
	for actionCount < c.MaxActions {
		renderedContext, err := c.DAG.GetCurrentContext()
		if err != nil {
			return fmt.Errorf("agent: render context: %w", err)
		}

		result, err := c.runActionWithRetry(ctx, userInput, renderedContext, currentKind, params)
		if err != nil {
			return err
		}

		// Open Question (a): the appended action carries prevKind — the
		// kind that was *just executed* — not the kind about to run next.
		addParams := dag.AddActionParams{
			Content:          result.Text,
			Kind:             prevKind,
			ActionParameters: params,
		}
		if query, ok := stringParam(params, "tool_search_query"); ok {
			addParams.ToolSearchQuery = query
		}
		if name, ok := stringParam(params, "tool_name"); ok {
			addParams.ToolName = name
		}
		if args, ok := params["tool_args"].(map[string]any); ok {
			addParams.ToolArgs = args
		}
		if _, err := c.DAG.AddAction(addParams); err != nil {
			return fmt.Errorf("agent: append action %s: %w", prevKind, err)
		}

		prevKind = result.NextKind
		currentKind = result.NextKind
		params = result.NextParams
		actionCount++

		if result.NextKind == action.AwaitUserInput {
			break
		}
	}

	return c.appendStepSummary(ctx)
}

// runActionWithRetry dispatches kind's handler, retrying on ParseError or
// an illegal proposed transition up to ActionMaxRetries times — both
// failure modes share one retry budget. ModelUnavailable / ModelInvalidKey
// and any other unrecognized error propagate immediately — only parsing
// and transition-policy failures are retried.
func (c *CoreAgent) runActionWithRetry(ctx context.Context, userInput, renderedContext string, kind action.Kind, params map[string]any) (handlerResult, error) {
	deterministic := isDeterministicToolKind(kind)

	attempts := 0
	for {
		result, err := dispatch(ctx, c.env, userInput, renderedContext, kind, params)
		if err != nil {
			if isRetryableActionError(err) {
				attempts++
				if attempts > c.ActionMaxRetries {
					return handlerResult{}, &PolicyViolation{Kind: string(kind)}
				}
				log.Printf("[Agent] retry %d/%d for %s after parse error: %v", attempts, c.ActionMaxRetries, kind, err)
				continue
			}
			return handlerResult{}, err
		}

		if deterministic || isAllowedTransition(kind, result.NextKind) {
			return result, nil
		}

		attempts++
		if attempts > c.ActionMaxRetries {
			return handlerResult{}, &PolicyViolation{Kind: string(kind)}
		}
		log.Printf("[Agent] retry %d/%d for %s after illegal transition to %s", attempts, c.ActionMaxRetries, kind, result.NextKind)
	}
}

func isRetryableActionError(err error) bool {
	return errors.Is(err, parser.ErrInvalidJSON) ||
		errors.Is(err, parser.ErrMissingField) ||
		errors.Is(err, parser.ErrUnknownActionKind)
}

// appendStepSummary generates a STEP_SUMMARY from the full HEAD→root
// context and appends it, creating a step-boundary node.
func (c *CoreAgent) appendStepSummary(ctx context.Context) error {
	renderedContext, err := c.DAG.GetCurrentContext()
	if err != nil {
		return fmt.Errorf("agent: render context for step summary: %w", err)
	}

	result, err := dispatch(ctx, c.env, "", renderedContext, action.StepSummary, nil)
	if err != nil {
		return fmt.Errorf("agent: step summary: %w", err)
	}

	_, err = c.DAG.AddAction(dag.AddActionParams{
		Content: result.Text,
		Kind:    action.StepSummary,
	})
	return err
}

// Backtrack moves HEAD via the DAG and, if OnBacktrack is set, schedules
// the supplemental branch-backtrack-summary generation.
func (c *CoreAgent) Backtrack(id, notes string) error {
	leaving := c.DAG.HeadID()
	if err := c.DAG.Backtrack(id, notes); err != nil {
		return err
	}
	if c.OnBacktrack != nil {
		contextAtBacktrack, _ := c.DAG.GetCurrentContext()
		c.OnBacktrack(leaving, notes, contextAtBacktrack)
	}
	return nil
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

// handlerTable registers the StepSummary kind via modelHandler too, since
// generating a summary is the same shape as any other model call: fetch a
// prompt, generate, parse (UPDATE_*/STEP_SUMMARY kinds echo back the same
// kind per the Response Parser, so no next-kind validation is needed).
func init() {
	handlerTable[action.StepSummary] = modelHandler
}

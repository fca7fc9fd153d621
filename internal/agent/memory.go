package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pocketomega/pocket-omega/internal/action"
	"github.com/pocketomega/pocket-omega/internal/dag"
	"github.com/pocketomega/pocket-omega/internal/llm"
	"github.com/pocketomega/pocket-omega/internal/parser"
	"github.com/pocketomega/pocket-omega/internal/prompt"
)

const (
	todoListUpdateInterval          = 1
	conversationStateUpdateInterval = 1
	conversationCompressionInterval = 5
)

// MemoryAgent runs concurrently with the Core Agent, refreshing derived
// per-node memories on an independent cadence. It never mutates graph
// topology — only NodeMemory entries on the node it was asked to update.
type MemoryAgent struct {
	dag      *dag.DAG
	provider llm.Provider
	prompts  *prompt.Store

	tick time.Duration

	mu       sync.Mutex
	inFlight map[string]bool // keyed by "nodeID:field", single-flight guard
}

// NewMemoryAgent creates a Memory Agent ticking every tick (default 5s when
// <= 0).
func NewMemoryAgent(d *dag.DAG, provider llm.Provider, prompts *prompt.Store, tick time.Duration) *MemoryAgent {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	return &MemoryAgent{
		dag:      d,
		provider: provider,
		prompts:  prompts,
		tick:     tick,
		inFlight: make(map[string]bool),
	}
}

// Run blocks, ticking until ctx is cancelled. Intended to be launched in
// its own goroutine by main.go, alongside the Core Agent's console loop.
// Cancellation is best-effort: outstanding detached tasks are abandoned,
// not awaited.
func (m *MemoryAgent) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.onTick(ctx)
		}
	}
}

func (m *MemoryAgent) onTick(ctx context.Context) {
	step := m.dag.GetStepCount()
	head := m.dag.HeadID()
	if head == "" {
		return
	}

	if step%todoListUpdateInterval == 0 {
		m.launch(ctx, head, "todo_list", m.updateTodoList)
	}
	if step%conversationStateUpdateInterval == 0 {
		m.launch(ctx, head, "conversation_state", m.updateConversationState)
	}
	if step%conversationCompressionInterval == 0 {
		m.launch(ctx, head, "conversation_compression", m.updateConversationCompression)
	}
}

// launch starts a detached goroutine for (nodeID, field), unless one is
// already in flight, so overlapping ticks never run the same update twice
// concurrently.
func (m *MemoryAgent) launch(ctx context.Context, nodeID, field string, fn func(context.Context, string)) {
	key := nodeID + ":" + field

	m.mu.Lock()
	if m.inFlight[key] {
		m.mu.Unlock()
		log.Printf("[Memory] skip %s on %s: update already in flight", field, nodeID)
		return
	}
	m.inFlight[key] = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, key)
			m.mu.Unlock()
		}()
		fn(ctx, nodeID)
	}()
}

func (m *MemoryAgent) updateTodoList(ctx context.Context, nodeID string) {
	value, err := m.generate(ctx, nodeID, action.UpdateTodoList)
	if err != nil {
		log.Printf("[Memory] todo list update on %s failed: %v", nodeID, err)
		return
	}
	if err := m.dag.SetTodoList(nodeID, value); err != nil {
		log.Printf("[Memory] todo list write on %s failed: %v", nodeID, err)
	}
}

func (m *MemoryAgent) updateConversationCompression(ctx context.Context, nodeID string) {
	value, err := m.generate(ctx, nodeID, action.UpdateConversationCompression)
	if err != nil {
		log.Printf("[Memory] conversation compression update on %s failed: %v", nodeID, err)
		return
	}
	if err := m.dag.SetConversationCompression(nodeID, value); err != nil {
		log.Printf("[Memory] conversation compression write on %s failed: %v", nodeID, err)
	}
}

// updateConversationState additionally enforces that the generated value
// deserializes to a mapping, retrying up to 3 times before raising
// MemoryFormatError. Confined here: logged, not fatal to the Core Agent's
// loop.
func (m *MemoryAgent) updateConversationState(ctx context.Context, nodeID string) {
	const maxRetries = 3

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		value, err := m.generate(ctx, nodeID, action.UpdateConversationState)
		if err != nil {
			lastErr = err
			continue
		}
		if _, ok := value.(map[string]any); !ok {
			lastErr = fmt.Errorf("conversation state did not parse to a mapping: %T", value)
			continue
		}
		if err := m.dag.SetConversationState(nodeID, value); err != nil {
			log.Printf("[Memory] conversation state write on %s failed: %v", nodeID, err)
		}
		return
	}

	err := &MemoryFormatError{NodeID: nodeID, Cause: lastErr}
	log.Printf("[Memory] %v", err)
}

// generate fetches kind's prompt, calls the Model Provider with the node's
// HEAD→root context, and parses the result (UPDATE_* kinds echo back the
// same kind, so NextKind is not used here — only Response).
func (m *MemoryAgent) generate(ctx context.Context, nodeID string, kind action.Kind) (any, error) {
	system, err := m.prompts.PromptFor(kind)
	if err != nil {
		return nil, err
	}

	contextStr, err := m.dag.GetContextBetweenNodes(nodeID, m.dag.RootID())
	if err != nil {
		return nil, err
	}

	raw, err := m.provider.Generate(ctx, contextStr, system)
	if err != nil {
		return nil, err
	}

	res, err := parser.Parse(raw, kind)
	if err != nil {
		return nil, err
	}
	return decodeMemoryValue(res.Response), nil
}

// ScheduleBranchBacktrackSummary is the hook the Core Agent's Backtrack
// wires to OnBacktrack: a one-shot UPDATE_BRANCH_BACKTRACK_SUMMARY
// generation for the node HEAD is leaving, dispatched through the same
// single-flight guard used for periodic updates.
func (m *MemoryAgent) ScheduleBranchBacktrackSummary(ctx context.Context, leavingNodeID, notes, contextAtBacktrack string) {
	m.launch(ctx, leavingNodeID, "branch_backtrack_summary", func(ctx context.Context, nodeID string) {
		system, err := m.prompts.PromptFor(action.UpdateBranchBacktrackSummary)
		if err != nil {
			log.Printf("[Memory] branch backtrack summary prompt missing: %v", err)
			return
		}

		input := "Backtrack notes: " + notes + "\n\n" + contextAtBacktrack
		raw, err := m.provider.Generate(ctx, input, system)
		if err != nil {
			log.Printf("[Memory] branch backtrack summary generation on %s failed: %v", nodeID, err)
			return
		}

		res, err := parser.Parse(raw, action.UpdateBranchBacktrackSummary)
		if err != nil {
			log.Printf("[Memory] branch backtrack summary parse on %s failed: %v", nodeID, err)
			return
		}

		if err := m.dag.SetBranchBacktrackSummary(nodeID, res.Response); err != nil {
			log.Printf("[Memory] branch backtrack summary write on %s failed: %v", nodeID, err)
		}
	})
}

// decodeMemoryValue tries to interpret text as JSON (objects/arrays are the
// common shapes for todo lists and conversation state); if it doesn't
// decode, the raw text is stored as-is, matching the DAG's `any`-typed
// derived fields.
func decodeMemoryValue(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return text
}

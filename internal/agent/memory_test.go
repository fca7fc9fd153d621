package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pocketomega/pocket-omega/internal/action"
	"github.com/pocketomega/pocket-omega/internal/dag"
)

// countingProvider counts concurrent and total calls, optionally blocking
// until released, to exercise the single-flight guard.
type countingProvider struct {
	mu       sync.Mutex
	total    int
	response string
	release  chan struct{}
}

func (p *countingProvider) Generate(ctx context.Context, promptContext, system string) (string, error) {
	p.mu.Lock()
	p.total++
	p.mu.Unlock()
	if p.release != nil {
		<-p.release
	}
	return p.response, nil
}

func (p *countingProvider) Name() string { return "counting" }

func TestMemoryAgent_UpdatesTodoListOnTick(t *testing.T) {
	d := dag.New()
	node, err := d.AddAction(dag.AddActionParams{Content: "hi", Kind: action.ProcessUserInput})
	if err != nil {
		t.Fatal(err)
	}

	p := &countingProvider{response: `{"response":"[\"buy milk\"]"}`}
	m := NewMemoryAgent(d, p, newTestStore(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.onTick(ctx)

	deadline := time.After(2 * time.Second)
	for {
		v, err := d.GetTodoList(node.NodeID)
		if err != nil {
			t.Fatal(err)
		}
		if v != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for todo list update")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMemoryAgent_SingleFlightSkipsDuplicateInFlightTick(t *testing.T) {
	d := dag.New()
	if _, err := d.AddAction(dag.AddActionParams{Content: "hi", Kind: action.ProcessUserInput}); err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	// "{}" decodes to a mapping, so the conversation-state update accepts it
	// on the first call and does not retry.
	p := &countingProvider{response: `{"response":"{}"}`, release: release}
	m := NewMemoryAgent(d, p, newTestStore(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First tick launches 3 detached tasks (todo/state/compression, since
	// GetStepCount()==0 and every interval divides 0), each blocked on
	// release. A second tick immediately after must observe in-flight keys
	// and skip, not double the call count.
	m.onTick(ctx)
	time.Sleep(20 * time.Millisecond)
	m.onTick(ctx)
	time.Sleep(20 * time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)

	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	if total != 3 {
		t.Errorf("want exactly 3 generate calls (one per field, second tick skipped), got %d", total)
	}
}

func TestMemoryAgent_ConversationStateFormatErrorAfterRetries(t *testing.T) {
	d := dag.New()
	node, err := d.AddAction(dag.AddActionParams{Content: "hi", Kind: action.ProcessUserInput})
	if err != nil {
		t.Fatal(err)
	}

	// A bare string response parses fine as JSON-the-text-field but the
	// Response itself ("not a mapping") does not deserialize to a map.
	p := &countingProvider{response: `{"response":"not a mapping"}`}
	m := NewMemoryAgent(d, p, newTestStore(), 0)

	m.updateConversationState(context.Background(), node.NodeID)

	v, err := d.GetConversationState(node.NodeID)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("conversation state should remain unset after MemoryFormatError, got %v", v)
	}
	if p.total != 4 {
		t.Errorf("want 4 attempts (1 + 3 retries), got %d", p.total)
	}
}

func TestMemoryAgent_ScheduleBranchBacktrackSummary(t *testing.T) {
	d := dag.New()
	node, err := d.AddAction(dag.AddActionParams{Content: "hi", Kind: action.ProcessUserInput})
	if err != nil {
		t.Fatal(err)
	}

	p := &countingProvider{response: `{"response":"abandoned this path to try another tool"}`}
	m := NewMemoryAgent(d, p, newTestStore(), 0)

	m.ScheduleBranchBacktrackSummary(context.Background(), node.NodeID, "try another path", "some context")

	deadline := time.After(2 * time.Second)
	for {
		v, err := d.GetBranchBacktrackSummary(node.NodeID)
		if err != nil {
			t.Fatal(err)
		}
		if v != nil {
			if v != "abandoned this path to try another tool" {
				t.Errorf("unexpected summary: %v", v)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for branch backtrack summary")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

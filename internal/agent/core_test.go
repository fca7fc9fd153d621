package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketomega/pocket-omega/internal/dag"
	"github.com/pocketomega/pocket-omega/internal/gateway"
	"github.com/pocketomega/pocket-omega/internal/prompt"
)

// fakeProvider returns canned responses in order, ignoring context/system.
type fakeProvider struct {
	responses []string
	calls     int
}

func (f *fakeProvider) Generate(ctx context.Context, promptContext, system string) (string, error) {
	if f.calls >= len(f.responses) {
		return "", errors.New("fakeProvider: no more canned responses")
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestStore() *prompt.Store {
	return prompt.NewStore("", "")
}

func TestRunStep_PureResponse(t *testing.T) {
	d := dag.New()
	fp := &fakeProvider{responses: []string{
		`{"response":"Hi there","next_action":"AGENT_RESPONSE"}`,
		`{"response":"Hi there"}`,
		`{"response":"User greeted; agent replied."}`,
	}}
	core := NewCoreAgent(d, fp, newTestStore(), nil, 10, 3)

	if err := core.RunStep(context.Background(), "hello"); err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}

	branchLen, err := d.GetBranchLength()
	if err != nil {
		t.Fatal(err)
	}
	if branchLen != 3 {
		t.Fatalf("want branch length 3 (4 nodes minus HEAD itself: USER_INPUT, PROCESS_USER_INPUT, AGENT_RESPONSE, STEP_SUMMARY), got %d", branchLen)
	}

	steps := d.GetStepNodes()
	if len(steps) != 1 {
		t.Errorf("want exactly one step-boundary node, got %d", len(steps))
	}
}

func TestRunStep_StepSummaryFailurePropagates(t *testing.T) {
	d := dag.New()
	fp := &fakeProvider{responses: []string{
		`{"response":"Hi there","next_action":"AGENT_RESPONSE"}`,
		`{"response":"Hi there"}`,
		// no third response: the STEP_SUMMARY call exhausts the canned
		// responses and fails, which must propagate out of RunStep rather
		// than being swallowed into a fabricated summary node.
	}}
	core := NewCoreAgent(d, fp, newTestStore(), nil, 10, 3)

	err := core.RunStep(context.Background(), "hello")
	if err == nil {
		t.Fatal("want RunStep to propagate the step summary failure, got nil")
	}

	steps := d.GetStepNodes()
	if len(steps) != 0 {
		t.Errorf("want no STEP_SUMMARY node appended on failure, got %d", len(steps))
	}
}

func TestRunStep_PolicyViolationAfterExhaustingRetries(t *testing.T) {
	d := dag.New()
	// From PROCESS_USER_INPUT, PROCESS_USER_INPUT itself is not a legal
	// next kind, so every one of these is rejected.
	illegal := `{"response":"x","next_action":"PROCESS_USER_INPUT"}`
	fp := &fakeProvider{responses: []string{illegal, illegal, illegal, illegal}}
	core := NewCoreAgent(d, fp, newTestStore(), nil, 10, 3)

	err := core.RunStep(context.Background(), "hello")
	var pv *PolicyViolation
	if !errors.As(err, &pv) {
		t.Fatalf("want *PolicyViolation, got %v", err)
	}
	if fp.calls != 4 {
		t.Errorf("want exactly 4 attempts (1 + 3 retries), got %d", fp.calls)
	}
}

func TestRunStep_BudgetCapStillAppendsStepSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions/create":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "session_id": "sess-1"})
		case "/mcp/execute":
			json.NewEncoder(w).Encode(map[string]any{"result": "ok"})
		}
	}))
	defer srv.Close()

	gw := gateway.NewClient(srv.URL)
	d := dag.New()

	toolExecResponse := `{"response":"calling tool","next_action":"AGENT_TOOL_EXECUTION","next_action_parameters":{"tool_name":"calc","tool_args":{}}}`
	fp := &fakeProvider{responses: []string{
		toolExecResponse, // PROCESS_USER_INPUT -> AGENT_TOOL_EXECUTION
		toolExecResponse, // PROCESS_AGENT_TOOL_EXECUTION_RESULT -> AGENT_TOOL_EXECUTION
		toolExecResponse,
		toolExecResponse,
		toolExecResponse,
		`{"response":"step ended at budget"}`, // STEP_SUMMARY
	}}
	core := NewCoreAgent(d, fp, newTestStore(), gw, 10, 3)

	if err := core.RunStep(context.Background(), "do something repeatedly"); err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}

	steps := d.GetStepNodes()
	if len(steps) != 1 {
		t.Fatalf("want a STEP_SUMMARY appended even without AWAIT_USER_INPUT, got %d step nodes", len(steps))
	}

	branchLen, err := d.GetBranchLength()
	if err != nil {
		t.Fatal(err)
	}
	// USER_INPUT + 10 budgeted actions + STEP_SUMMARY = 12 nodes from HEAD
	// to root inclusive, so GetBranchLength (ancestor count, HEAD excluded)
	// is 11.
	if branchLen != 11 {
		t.Errorf("want branch length 11 (budget cap exhausted), got %d", branchLen)
	}
}

package agent

import "fmt"

// PolicyViolation is raised when the first call and all ACTION_MAX_RETRIES
// retries for the current kind fail, each either proposing a transition
// outside the allowed set or failing to parse. Fatal for the current step;
// surfaces to the console.
type PolicyViolation struct {
	Kind string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation: no legal transition accepted from %s after retries", e.Kind)
}

// InvalidAction is raised when a deterministic tool transition
// (AGENT_TOOL_SEARCH / AGENT_TOOL_EXECUTION) is missing its required
// parameters. Fatal for the step.
type InvalidAction struct {
	Kind   string
	Reason string
}

func (e *InvalidAction) Error() string {
	return fmt.Sprintf("invalid action %s: %s", e.Kind, e.Reason)
}

// MemoryFormatError is raised by the Memory Agent when conversation-state
// generation fails to deserialize to a mapping after 3 retries. Confined to
// the Memory Agent: logged, not fatal to the Core Agent.
type MemoryFormatError struct {
	NodeID string
	Cause  error
}

func (e *MemoryFormatError) Error() string {
	return fmt.Sprintf("memory format error on node %s: %v", e.NodeID, e.Cause)
}

func (e *MemoryFormatError) Unwrap() error { return e.Cause }

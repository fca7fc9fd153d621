package agent

import "github.com/pocketomega/pocket-omega/internal/action"

// transitionTable is the closed set of legal next kinds per current kind,
// enforced after the Response Parser has already validated next_action is
// a member of the ActionKind enum. Kinds absent from this table (the two
// deterministic tool kinds, and the UPDATE_*/STEP_SUMMARY kinds the parser
// echoes back as same-kind) never reach isAllowedTransition — they are
// dispatched deterministically or are not part of the model-proposed loop.
var transitionTable = map[action.Kind]map[action.Kind]bool{
	action.ProcessUserInput: set(
		action.AgentPlanning,
		action.AgentToolSearch,
		action.AgentToolExecution,
		action.AgentResponse,
	),
	action.AgentPlanning: set(
		action.AgentToolSearch,
		action.AgentResponse,
	),
	action.ProcessAgentToolSearchResult: set(
		action.AgentPlanning,
		action.AgentToolExecution,
		action.AgentResponse,
	),
	action.ProcessAgentToolExecutionResult: set(
		action.AgentPlanning,
		action.AgentResponse,
		action.AgentToolExecution,
	),
	action.AgentResponse: set(
		action.ProcessUserInput,
		action.AwaitUserInput,
	),
	// AWAIT_USER_INPUT is terminal: no outgoing entry, isAllowedTransition
	// always rejects from it (the step loop never calls it from this
	// state, since AWAIT_USER_INPUT is the break condition — see
	// CoreAgent.RunStep in core.go).
}

func set(kinds ...action.Kind) map[action.Kind]bool {
	m := make(map[action.Kind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// isAllowedTransition reports whether next is a legal next kind from
// current, per the closed transition table.
func isAllowedTransition(current, next action.Kind) bool {
	allowed, ok := transitionTable[current]
	if !ok {
		return false
	}
	return allowed[next]
}

// isDeterministicToolKind reports whether kind is one of the two
// deterministic side-effect transitions that never call the model.
func isDeterministicToolKind(kind action.Kind) bool {
	return kind == action.AgentToolSearch || kind == action.AgentToolExecution
}

package agent

import (
	"testing"

	"github.com/pocketomega/pocket-omega/internal/action"
)

func TestTransitionTableAcceptsLegal(t *testing.T) {
	legal := []struct {
		from, to action.Kind
	}{
		{action.ProcessUserInput, action.AgentPlanning},
		{action.ProcessUserInput, action.AgentToolSearch},
		{action.ProcessUserInput, action.AgentToolExecution},
		{action.ProcessUserInput, action.AgentResponse},
		{action.AgentPlanning, action.AgentToolSearch},
		{action.AgentPlanning, action.AgentResponse},
		{action.ProcessAgentToolSearchResult, action.AgentPlanning},
		{action.ProcessAgentToolSearchResult, action.AgentToolExecution},
		{action.ProcessAgentToolSearchResult, action.AgentResponse},
		{action.ProcessAgentToolExecutionResult, action.AgentPlanning},
		{action.ProcessAgentToolExecutionResult, action.AgentResponse},
		{action.ProcessAgentToolExecutionResult, action.AgentToolExecution},
		{action.AgentResponse, action.ProcessUserInput},
		{action.AgentResponse, action.AwaitUserInput},
	}
	for _, tc := range legal {
		if !isAllowedTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}
}

func TestTransitionTableRejectsIllegal(t *testing.T) {
	illegal := []struct {
		from, to action.Kind
	}{
		{action.AgentPlanning, action.ProcessUserInput},
		{action.AgentPlanning, action.AgentToolExecution},
		{action.AwaitUserInput, action.ProcessUserInput},
		{action.ProcessUserInput, action.AwaitUserInput},
	}
	for _, tc := range illegal {
		if isAllowedTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

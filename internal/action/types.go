// Package action defines the typed action records and transition enum the
// DAG Memory, Response Parser, and Core Agent all share.
package action

import "time"

// Kind is the closed set of action/transition labels.
type Kind string

const (
	UserInput                        Kind = "USER_INPUT"
	ProcessUserInput                 Kind = "PROCESS_USER_INPUT"
	AgentPlanning                     Kind = "AGENT_PLANNING"
	AgentToolSearch                   Kind = "AGENT_TOOL_SEARCH"
	ProcessAgentToolSearchResult      Kind = "PROCESS_AGENT_TOOL_SEARCH_RESULT"
	AgentToolExecution                Kind = "AGENT_TOOL_EXECUTION"
	ProcessAgentToolExecutionResult   Kind = "PROCESS_AGENT_TOOL_EXECUTION_RESULT"
	AgentResponse                     Kind = "AGENT_RESPONSE"
	AwaitUserInput                    Kind = "AWAIT_USER_INPUT"
	StepSummary                       Kind = "STEP_SUMMARY"
	UpdateTodoList                    Kind = "UPDATE_TODO_LIST"
	UpdateConversationState           Kind = "UPDATE_CONVERSATION_STATE"
	UpdateConversationCompression     Kind = "UPDATE_CONVERSATION_COMPRESSION"
	UpdateBranchBacktrackSummary      Kind = "UPDATE_BRANCH_BACKTRACK_SUMMARY"
	Default                           Kind = "DEFAULT"
)

// allKinds is the membership set backing IsValid.
var allKinds = map[Kind]bool{
	UserInput:                       true,
	ProcessUserInput:                true,
	AgentPlanning:                   true,
	AgentToolSearch:                 true,
	ProcessAgentToolSearchResult:    true,
	AgentToolExecution:              true,
	ProcessAgentToolExecutionResult: true,
	AgentResponse:                   true,
	AwaitUserInput:                  true,
	StepSummary:                     true,
	UpdateTodoList:                  true,
	UpdateConversationState:         true,
	UpdateConversationCompression:   true,
	UpdateBranchBacktrackSummary:    true,
	Default:                         true,
}

// IsValid reports whether k is a member of the closed ActionKind enum.
func (k Kind) IsValid() bool {
	return allKinds[k]
}

// IsUpdateKind reports whether k is one of the four UPDATE_* memory-update
// kinds, or STEP_SUMMARY — kinds the Response Parser treats as
// "same kind, no transition" rather than requiring a next_action.
func (k Kind) IsUpdateKind() bool {
	switch k {
	case UpdateTodoList, UpdateConversationState, UpdateConversationCompression, UpdateBranchBacktrackSummary, StepSummary:
		return true
	default:
		return false
	}
}

// Action is a single recorded event: a model output, a tool call, a tool
// result, or a summary. All fields other than ID, Kind, Timestamp, and
// Content are optional.
type Action struct {
	ID                string         `json:"id"`
	Kind              Kind           `json:"action_type"`
	Timestamp         time.Time      `json:"timestamp"`
	Content           string         `json:"content"`
	ToolName          string         `json:"tool_name,omitempty"`
	ToolArgs          map[string]any `json:"tool_args,omitempty"`
	ToolResult        any            `json:"tool_result,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ActionParameters  map[string]any `json:"action_parameters,omitempty"`
	ToolSearchQuery   string         `json:"tool_search_query,omitempty"`
}

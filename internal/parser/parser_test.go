package parser

import (
	"errors"
	"testing"

	"github.com/pocketomega/pocket-omega/internal/action"
)

func TestParseAgentResponseIgnoresNextAction(t *testing.T) {
	raw := `{"response":"Hi there","next_action":"AGENT_PLANNING"}`
	res, err := Parse(raw, action.AgentResponse)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextKind != action.AwaitUserInput {
		t.Errorf("AGENT_RESPONSE must force AWAIT_USER_INPUT, got %s", res.NextKind)
	}
	if res.Response != "Hi there" {
		t.Errorf("unexpected response: %q", res.Response)
	}
}

func TestParseUpdateKindReturnsSameKind(t *testing.T) {
	raw := `{"response":"[\"buy milk\"]"}`
	res, err := Parse(raw, action.UpdateTodoList)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextKind != action.UpdateTodoList {
		t.Errorf("want same kind echoed back, got %s", res.NextKind)
	}
}

func TestParseRequiresNextActionParametersForToolSearch(t *testing.T) {
	raw := `{"response":"searching","next_action":"AGENT_TOOL_SEARCH"}`
	_, err := Parse(raw, action.ProcessUserInput)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("want ErrMissingField, got %v", err)
	}
}

func TestParseToolSearchWithParameters(t *testing.T) {
	raw := `{"response":"searching","next_action":"AGENT_TOOL_SEARCH","next_action_parameters":{"tool_search_query":"calculator"}}`
	res, err := Parse(raw, action.ProcessUserInput)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextKind != action.AgentToolSearch {
		t.Errorf("want AGENT_TOOL_SEARCH, got %s", res.NextKind)
	}
	if res.NextParams["tool_search_query"] != "calculator" {
		t.Errorf("params not preserved: %v", res.NextParams)
	}
}

func TestParseUnknownActionKind(t *testing.T) {
	raw := `{"response":"x","next_action":"NOT_A_REAL_KIND"}`
	_, err := Parse(raw, action.ProcessUserInput)
	if !errors.Is(err, ErrUnknownActionKind) {
		t.Errorf("want ErrUnknownActionKind, got %v", err)
	}
}

func TestParseFencedEquivalentToUnfenced(t *testing.T) {
	plain := `{"response":"Hi there","next_action":"AGENT_RESPONSE"}`
	fencedJSON := "```json\n" + plain + "\n```"
	fencedBare := "```\n" + plain + "\n```"

	want, err := Parse(plain, action.ProcessUserInput)
	if err != nil {
		t.Fatal(err)
	}
	gotJSON, err := Parse(fencedJSON, action.ProcessUserInput)
	if err != nil {
		t.Fatal(err)
	}
	gotBare, err := Parse(fencedBare, action.ProcessUserInput)
	if err != nil {
		t.Fatal(err)
	}
	if gotJSON.Response != want.Response || gotJSON.NextKind != want.NextKind {
		t.Errorf("fenced(json) parse should equal unfenced parse: want=%+v got=%+v", want, gotJSON)
	}
	if gotBare.Response != want.Response || gotBare.NextKind != want.NextKind {
		t.Errorf("fenced(bare) parse should equal unfenced parse: want=%+v got=%+v", want, gotBare)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse("not json at all", action.ProcessUserInput)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("want ErrInvalidJSON, got %v", err)
	}
}

func TestParseMissingResponseField(t *testing.T) {
	_, err := Parse(`{"next_action":"AGENT_RESPONSE"}`, action.ProcessUserInput)
	if !errors.Is(err, ErrMissingField) {
		t.Errorf("want ErrMissingField, got %v", err)
	}
}

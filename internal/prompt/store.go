// Package prompt implements the Prompt Store: prompt_for(kind) -> string,
// plus the fixed tool-description preamble the Core Agent concatenates in
// front of every prompt.
//
// Three layers per name: an embedded default, optionally overridden by a
// file of the same name on disk, plus an optional operator rules file
// whose lines are filtered for prompt-injection phrasing.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pocketomega/pocket-omega/internal/action"
)

//go:embed prompts/*
var defaultPrompts embed.FS

// promptInjectionPatterns contains lowercased substrings that indicate
// prompt injection attempts. Lines matching any pattern are dropped from
// the operator rules file with a warning.
var promptInjectionPatterns = []string{
	"ignore previous",
	"ignore above",
	"ignore all previous",
	"disregard all",
	"disregard previous",
	"forget previous",
	"forget all previous",
	"override instructions",
	"override previous",
	"new instructions:",
	"from now on",
}

// ErrNoPromptForKind is returned by PromptFor when no prompt (neither on
// disk nor embedded) exists for the given kind.
type ErrNoPromptForKind struct {
	Kind action.Kind
}

func (e *ErrNoPromptForKind) Error() string {
	return fmt.Sprintf("no prompt for action kind %q", e.Kind)
}

// kindFileNames maps each ActionKind the Core Agent ever requests a prompt
// for to its backing file name.
var kindFileNames = map[action.Kind]string{
	action.ProcessUserInput:                 "process_user_input.md",
	action.AgentPlanning:                    "agent_planning.md",
	action.ProcessAgentToolSearchResult:     "process_tool_search_result.md",
	action.ProcessAgentToolExecutionResult:  "process_tool_execution_result.md",
	action.AgentResponse:                    "agent_response.md",
	action.StepSummary:                      "step_summary.md",
	action.UpdateTodoList:                   "update_todo_list.md",
	action.UpdateConversationState:          "update_conversation_state.md",
	action.UpdateConversationCompression:    "update_conversation_compression.md",
	action.UpdateBranchBacktrackSummary:     "update_branch_backtrack_summary.md",
}

const toolPreambleFile = "bash_execute_tool_description.md"

// Store is the Prompt Store: stateless from the caller's perspective and
// side-effect-free aside from reading its backing files at first use (then
// cached). Safe for concurrent use.
type Store struct {
	promptsDir string // runtime override directory (may be empty)
	rulesPath  string // path to an operator rules file (may be empty)

	mu    sync.RWMutex
	cache map[string]string
}

// NewStore creates a Store that reads overrides from promptsDir (falling
// back to embedded defaults) and appends operator rules from rulesPath.
// Both paths may be empty.
func NewStore(promptsDir, rulesPath string) *Store {
	return &Store{
		promptsDir: promptsDir,
		rulesPath:  rulesPath,
		cache:      make(map[string]string),
	}
}

// PromptFor returns the prompt text for kind, with the tool-description
// preamble concatenated in front, plus any operator rules appended.
func (s *Store) PromptFor(kind action.Kind) (string, error) {
	name, ok := kindFileNames[kind]
	if !ok {
		return "", &ErrNoPromptForKind{Kind: kind}
	}

	preamble := s.load(toolPreambleFile)
	body := s.load(name)
	if body == "" {
		return "", &ErrNoPromptForKind{Kind: kind}
	}

	var b strings.Builder
	if preamble != "" {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	if rules := s.loadRules(); rules != "" {
		b.WriteString("\n\n")
		b.WriteString(rules)
	}
	return b.String(), nil
}

// load returns the content of the named prompt file, preferring a disk
// override, then the embedded default, caching the result.
func (s *Store) load(name string) string {
	cacheKey := "l2:" + name

	s.mu.RLock()
	if val, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return val
	}
	s.mu.RUnlock()

	content := s.loadUncached(name)

	s.mu.Lock()
	if val, ok := s.cache[cacheKey]; ok {
		s.mu.Unlock()
		return val
	}
	s.cache[cacheKey] = content
	s.mu.Unlock()

	return content
}

func (s *Store) loadUncached(name string) string {
	if s.promptsDir != "" {
		diskPath := filepath.Join(s.promptsDir, name)
		data, err := os.ReadFile(diskPath)
		if err == nil {
			return string(data)
		}
		if !os.IsNotExist(err) {
			log.Printf("[Prompt] Warning: read %q failed: %v; falling back to embedded default", diskPath, err)
		}
	}

	data, err := fs.ReadFile(defaultPrompts, "prompts/"+name)
	if err == nil {
		return string(data)
	}
	return ""
}

// loadRules reads the operator rules file and filters injection-pattern
// lines, caching the result.
func (s *Store) loadRules() string {
	const cacheKey = "l3:rules"

	s.mu.RLock()
	if val, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return val
	}
	s.mu.RUnlock()

	content := s.loadRulesUncached()

	s.mu.Lock()
	s.cache[cacheKey] = content
	s.mu.Unlock()

	return content
}

func (s *Store) loadRulesUncached() string {
	if s.rulesPath == "" {
		return ""
	}
	data, err := os.ReadFile(s.rulesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Prompt] Warning: read operator rules %q failed: %v", s.rulesPath, err)
		}
		return ""
	}
	return filterDangerousLines(string(data))
}

func filterDangerousLines(content string) string {
	lines := strings.Split(content, "\n")
	safe := make([]string, 0, len(lines))
	for _, line := range lines {
		lower := strings.ToLower(line)
		dropped := false
		for _, pattern := range promptInjectionPatterns {
			if strings.Contains(lower, pattern) {
				log.Printf("[Prompt] Warning: operator rules line dropped (injection pattern %q detected): %q", pattern, line)
				dropped = true
				break
			}
		}
		if !dropped {
			safe = append(safe, line)
		}
	}
	return strings.Join(safe, "\n")
}

// Reload clears the cache so subsequent PromptFor calls re-read from disk.
func (s *Store) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

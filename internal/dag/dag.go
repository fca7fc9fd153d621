// Package dag implements the DAG Memory: a serially-grown, branchable
// action graph carrying per-node derived memories, rendered into the
// stable context format the Model Provider consumes. SetConversationState
// deliberately does not carry forward ConversationCompression (see
// DESIGN.md Open Question (b)).
//
// Concurrency: the whole graph is guarded by a single sync.RWMutex rather
// than per-node locks (see DESIGN.md Open Question (d)) — there is exactly
// one writer of topology (the Core Agent) and the Memory Agent's per-node
// memory writes are individually atomic under the same lock, so a
// graph-wide lock gives consistent ordering without the complexity of
// per-node lock management.
package dag

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pocketomega/pocket-omega/internal/action"
)

// DAG is the append-only, never-pruned action graph.
type DAG struct {
	mu      sync.RWMutex
	nodes   map[string]*action.Node
	rootID  string
	headID  string
	nowFunc func() time.Time // overridable for tests
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:   make(map[string]*action.Node),
		nowFunc: time.Now,
	}
}

func (d *DAG) now() time.Time {
	if d.nowFunc != nil {
		return d.nowFunc()
	}
	return time.Now()
}

// AddActionParams describes a new Action to append to the graph.
type AddActionParams struct {
	Content          string
	Kind             action.Kind
	ToolName         string
	ToolArgs         map[string]any
	Metadata         map[string]any
	ActionParameters map[string]any
	ToolSearchQuery  string
	// ParentID, if empty, defaults to HEAD (or is the graph's first node).
	ParentID string
	// SeedMemory optionally seeds the new node's single initial
	// NodeMemoryEntry instead of the all-null default. Ignored for
	// STEP_SUMMARY actions, which carry no NodeMemory at all.
	SeedMemory *action.NodeMemoryEntry
}

// AddAction creates an Action, wraps it in a new Node under the resolved
// parent (defaulting to HEAD), moves HEAD to the new node, and sets root if
// the graph was empty.
func (d *DAG) AddAction(p AddActionParams) (*action.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parentID := p.ParentID
	if parentID == "" {
		parentID = d.headID
	}
	if parentID != "" {
		if _, ok := d.nodes[parentID]; !ok {
			return nil, fmt.Errorf("%w: parent %q", ErrNodeNotFound, parentID)
		}
	}

	seq := len(d.nodes)
	act := action.Action{
		ID:               strconv.Itoa(seq),
		Kind:             p.Kind,
		Timestamp:        d.now(),
		Content:          p.Content,
		ToolName:         p.ToolName,
		ToolArgs:         p.ToolArgs,
		Metadata:         p.Metadata,
		ActionParameters: p.ActionParameters,
		ToolSearchQuery:  p.ToolSearchQuery,
	}
	// tool_result mirrors content for the two deterministic side-effect
	// kinds.
	if p.Kind == action.AgentToolSearch || p.Kind == action.AgentToolExecution {
		act.ToolResult = p.Content
	}

	node := &action.Node{
		NodeID:   uuid.NewString(),
		ParentID: parentID,
		Act:      act,
	}

	if p.Kind == action.StepSummary {
		node.StepBoundary = true
		node.StepSummary = p.Content
	} else {
		entry := action.NodeMemoryEntry{Timestamp: d.now()}
		if p.SeedMemory != nil {
			entry = *p.SeedMemory
			entry.Timestamp = d.now()
		}
		node.Memory = &action.NodeMemory{Entries: []action.NodeMemoryEntry{entry}}
	}

	d.nodes[node.NodeID] = node

	if d.rootID == "" {
		d.rootID = node.NodeID
	} else {
		parent := d.nodes[parentID]
		parent.ChildrenIDs = append(parent.ChildrenIDs, node.NodeID)
	}
	d.headID = node.NodeID

	return node, nil
}

// UpdateNode overwrites a node's Action and, if memory is non-nil, appends
// it to the node's NodeMemory history.
func (d *DAG) UpdateNode(id string, act action.Action, memory *action.NodeMemoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	node, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	node.Act = act
	if memory != nil {
		if node.Memory == nil {
			return fmt.Errorf("%w: %q", ErrNoMemoryOnStepNode, id)
		}
		node.Memory.Entries = append(node.Memory.Entries, *memory)
	}
	return nil
}

// resolveID returns id, or HEAD if id is empty. Caller must hold the lock.
func (d *DAG) resolveID(id string) string {
	if id == "" {
		return d.headID
	}
	return id
}

func (d *DAG) setField(nodeID string, field action.MemoryField, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.resolveID(nodeID)
	node, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	if node.Memory == nil {
		return fmt.Errorf("%w: %q", ErrNoMemoryOnStepNode, id)
	}

	prev, _ := node.Memory.Latest()
	entry := action.NodeMemoryEntry{
		UpdatedField:            field,
		Timestamp:               d.now(),
		TodoList:                prev.TodoList,
		ConversationState:       prev.ConversationState,
		BranchBacktrackSummary:  prev.BranchBacktrackSummary,
		ConversationCompression: prev.ConversationCompression,
	}

	switch field {
	case action.FieldTodoList:
		entry.TodoList = value
	case action.FieldConversationState:
		entry.ConversationState = value
		// Open Question (b), preserved deliberately: the original
		// implementation does not carry conversation_compression
		// forward when conversation_state is updated.
		entry.ConversationCompression = nil
	case action.FieldConversationCompression:
		entry.ConversationCompression = value
	case action.FieldBranchBacktrackSummary:
		entry.BranchBacktrackSummary = value
	}

	node.Memory.Entries = append(node.Memory.Entries, entry)
	return nil
}

// SetTodoList appends a NodeMemoryEntry recording a new todo list value.
// nodeID may be empty to mean HEAD.
func (d *DAG) SetTodoList(nodeID string, value any) error {
	return d.setField(nodeID, action.FieldTodoList, value)
}

// SetConversationState appends a NodeMemoryEntry recording a new
// conversation state value. Does NOT carry forward conversation_compression
// — see DESIGN.md Open Question (b).
func (d *DAG) SetConversationState(nodeID string, value any) error {
	return d.setField(nodeID, action.FieldConversationState, value)
}

// SetConversationCompression appends a NodeMemoryEntry recording a new
// conversation compression value.
func (d *DAG) SetConversationCompression(nodeID string, value any) error {
	return d.setField(nodeID, action.FieldConversationCompression, value)
}

// SetBranchBacktrackSummary appends a NodeMemoryEntry recording a new
// branch-backtrack summary value.
func (d *DAG) SetBranchBacktrackSummary(nodeID string, value any) error {
	return d.setField(nodeID, action.FieldBranchBacktrackSummary, value)
}

func (d *DAG) getField(nodeID string, field action.MemoryField) (any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id := d.resolveID(nodeID)
	node, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	entry, ok := node.Memory.Latest()
	if !ok {
		return nil, nil
	}
	switch field {
	case action.FieldTodoList:
		return entry.TodoList, nil
	case action.FieldConversationState:
		return entry.ConversationState, nil
	case action.FieldBranchBacktrackSummary:
		return entry.BranchBacktrackSummary, nil
	case action.FieldConversationCompression:
		return entry.ConversationCompression, nil
	default:
		return nil, nil
	}
}

// GetTodoList returns the latest todo list value for nodeID (HEAD if empty).
func (d *DAG) GetTodoList(nodeID string) (any, error) {
	return d.getField(nodeID, action.FieldTodoList)
}

// GetConversationState returns the latest conversation state value.
func (d *DAG) GetConversationState(nodeID string) (any, error) {
	return d.getField(nodeID, action.FieldConversationState)
}

// GetBranchBacktrackSummary returns the latest branch-backtrack summary.
func (d *DAG) GetBranchBacktrackSummary(nodeID string) (any, error) {
	return d.getField(nodeID, action.FieldBranchBacktrackSummary)
}

// GetConversationCompression returns the latest conversation compression.
func (d *DAG) GetConversationCompression(nodeID string) (any, error) {
	return d.getField(nodeID, action.FieldConversationCompression)
}

// GetCurrentNodeMemory returns the most recent NodeMemoryEntry for nodeID
// (HEAD if empty).
func (d *DAG) GetCurrentNodeMemory(nodeID string) (action.NodeMemoryEntry, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id := d.resolveID(nodeID)
	node, ok := d.nodes[id]
	if !ok {
		return action.NodeMemoryEntry{}, false, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	entry, ok := node.Memory.Latest()
	return entry, ok, nil
}

// GetNodeMemoryHistoryForNode returns the full ordered memory history for a
// node.
func (d *DAG) GetNodeMemoryHistoryForNode(nodeID string) ([]action.NodeMemoryEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id := d.resolveID(nodeID)
	node, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	if node.Memory == nil {
		return nil, nil
	}
	out := make([]action.NodeMemoryEntry, len(node.Memory.Entries))
	copy(out, node.Memory.Entries)
	return out, nil
}

// GetNodeByID returns the node with the given id.
func (d *DAG) GetNodeByID(id string) (*action.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return node, nil
}

// GetPathToRoot returns the ancestor ids of id, nearest first, root last.
// The node id itself is not included.
func (d *DAG) GetPathToRoot(id string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}

	var path []string
	visited := map[string]bool{id: true}
	cur := d.nodes[id]
	for cur.ParentID != "" {
		if visited[cur.ParentID] {
			return nil, ErrCycleDetected
		}
		visited[cur.ParentID] = true
		path = append(path, cur.ParentID)
		parent, ok := d.nodes[cur.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, cur.ParentID)
		}
		cur = parent
	}
	return path, nil
}

// GetAllBranchNodeIDs returns ids of nodes with 2 or more children.
func (d *DAG) GetAllBranchNodeIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for id, n := range d.nodes {
		if len(n.ChildrenIDs) >= 2 {
			out = append(out, id)
		}
	}
	return out
}

// GetAllLeafNodeIDs returns ids of nodes with no children.
func (d *DAG) GetAllLeafNodeIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for id, n := range d.nodes {
		if len(n.ChildrenIDs) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// GetStepNodes returns ids of all step-boundary nodes.
func (d *DAG) GetStepNodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for id, n := range d.nodes {
		if n.StepBoundary {
			out = append(out, id)
		}
	}
	return out
}

// GetActionsForStep walks backward from stepID through parents until root,
// returning the actions in forward (root-to-step) order.
func (d *DAG) GetActionsForStep(stepID string) ([]action.Action, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node, ok := d.nodes[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, stepID)
	}

	var reversed []action.Action
	visited := map[string]bool{}
	cur := node
	for {
		if visited[cur.NodeID] {
			return nil, ErrCycleDetected
		}
		visited[cur.NodeID] = true
		reversed = append(reversed, cur.Act)
		if cur.ParentID == "" {
			break
		}
		parent, ok := d.nodes[cur.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, cur.ParentID)
		}
		cur = parent
	}

	out := make([]action.Action, len(reversed))
	for i, a := range reversed {
		out[len(reversed)-1-i] = a
	}
	return out, nil
}

// SetCurrentNode moves HEAD to id (checkout semantics).
func (d *DAG) SetCurrentNode(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	d.headID = id
	return nil
}

// Backtrack requires non-empty notes, writes metadata["notes"] on the
// target node's Action, and moves HEAD to it.
func (d *DAG) Backtrack(id string, notes string) error {
	if notes == "" {
		return ErrEmptyNotes
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	node, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	if node.Act.Metadata == nil {
		node.Act.Metadata = map[string]any{}
	}
	node.Act.Metadata["notes"] = notes
	d.headID = id
	return nil
}

// GetContextBetweenNodes walks parents from start until end, rejecting
// cycles and unreachability, and renders the path root(end)-first,
// start-last.
func (d *DAG) GetContextBetweenNodes(start, end string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	startNode, ok := d.nodes[start]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, start)
	}
	if _, ok := d.nodes[end]; !ok {
		return "", fmt.Errorf("%w: %q", ErrNodeNotFound, end)
	}

	var path []*action.Node
	visited := map[string]bool{}
	cur := startNode
	for {
		if visited[cur.NodeID] {
			return "", ErrCycleDetected
		}
		visited[cur.NodeID] = true
		path = append(path, cur)
		if cur.NodeID == end {
			break
		}
		if cur.ParentID == "" {
			return "", ErrUnreachable
		}
		parent, ok := d.nodes[cur.ParentID]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrNodeNotFound, cur.ParentID)
		}
		cur = parent
	}

	// path is start-first; reverse to root(end)-first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return renderNodes(path), nil
}

// GetCurrentContext renders the path from HEAD to root, or "" if either is
// unset.
func (d *DAG) GetCurrentContext() (string, error) {
	d.mu.RLock()
	head, root := d.headID, d.rootID
	d.mu.RUnlock()
	if head == "" || root == "" {
		return "", nil
	}
	return d.GetContextBetweenNodes(head, root)
}

// GetRecentContext renders the window of the most recent max nodes on the
// root→HEAD path, HEAD included (oldest-first within the window, HEAD last).
func (d *DAG) GetRecentContext(max int) (string, error) {
	d.mu.RLock()
	head, root := d.headID, d.rootID
	d.mu.RUnlock()
	if head == "" || root == "" || max <= 0 {
		return "", nil
	}

	full, err := d.pathFromRootTo(head)
	if err != nil {
		return "", err
	}
	if len(full) > max {
		full = full[len(full)-max:]
	}
	return renderNodes(full), nil
}

// pathFromRootTo returns the node chain from root to id (inclusive, root
// first), used by GetRecentContext.
func (d *DAG) pathFromRootTo(id string) ([]*action.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}

	var path []*action.Node
	visited := map[string]bool{}
	cur := node
	for {
		if visited[cur.NodeID] {
			return nil, ErrCycleDetected
		}
		visited[cur.NodeID] = true
		path = append(path, cur)
		if cur.ParentID == "" {
			break
		}
		parent, ok := d.nodes[cur.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, cur.ParentID)
		}
		cur = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// GetConversationLength returns the numeric id of the HEAD action.
func (d *DAG) GetConversationLength() (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.headID == "" {
		return 0, nil
	}
	node, ok := d.nodes[d.headID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, d.headID)
	}
	n, err := strconv.Atoi(node.Act.ID)
	if err != nil {
		return 0, fmt.Errorf("malformed action id %q: %w", node.Act.ID, err)
	}
	return n, nil
}

// GetBranchLength returns the length of the path from HEAD to root (the
// ancestor count from GetPathToRoot, which excludes HEAD itself).
func (d *DAG) GetBranchLength() (int, error) {
	d.mu.RLock()
	head := d.headID
	d.mu.RUnlock()
	if head == "" {
		return 0, nil
	}
	path, err := d.GetPathToRoot(head)
	if err != nil {
		return 0, err
	}
	return len(path), nil
}

// GetStepCount returns the count of step-boundary nodes.
func (d *DAG) GetStepCount() int {
	return len(d.GetStepNodes())
}

// HeadID returns the current HEAD node id.
func (d *DAG) HeadID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.headID
}

// RootID returns the root node id.
func (d *DAG) RootID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rootID
}

// Clear resets the node map, root, and HEAD.
func (d *DAG) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = make(map[string]*action.Node)
	d.rootID = ""
	d.headID = ""
}

// WriteTranscript renders the current context and writes it to path.
func (d *DAG) WriteTranscript(path string) error {
	ctx, err := d.GetCurrentContext()
	if err != nil {
		return err
	}
	return writeFile(path, ctx)
}

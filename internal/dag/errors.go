package dag

import "errors"

// ErrNoMemoryOnStepNode is raised by the set_* operations when the target
// node is a step-boundary node and therefore carries no NodeMemory.
var ErrNoMemoryOnStepNode = errors.New("node has no memory (step-boundary node)")

// ErrNodeNotFound is raised by any operation referencing an unknown node id.
var ErrNodeNotFound = errors.New("node not found")

// ErrCycleDetected is raised by get_context_between_nodes when the parent
// chain loops back on itself before reaching the requested end node.
var ErrCycleDetected = errors.New("cycle detected while walking parent chain")

// ErrUnreachable is raised by get_context_between_nodes when the parent
// chain reaches a node with no parent before reaching the requested end.
var ErrUnreachable = errors.New("end node not reachable from start node")

// ErrEmptyNotes is raised by Backtrack when notes is empty.
var ErrEmptyNotes = errors.New("backtrack requires non-empty notes")

package dag

import (
	"encoding/json"
	"strings"

	"github.com/pocketomega/pocket-omega/internal/action"
	"github.com/pocketomega/pocket-omega/internal/util"
)

// maxRenderedToolResultRunes bounds how much of a single tool_result is
// rendered into the context window; a runaway tool output (a full file dump,
// a huge search result) should not dominate the window at the expense of
// surrounding turns.
const maxRenderedToolResultRunes = 4000

// renderNode formats a single node per the stable context rendering format:
// "[HH:MM:SS] <KIND_UPPER_SNAKE>: \n <pretty-printed Action JSON, 2-space indent>".
func renderNode(n *action.Node) string {
	ts := n.Act.Timestamp.Format("15:04:05")
	act := n.Act
	if s, ok := act.ToolResult.(string); ok {
		act.ToolResult = util.TruncateRunes(s, maxRenderedToolResultRunes)
	}
	body, err := json.MarshalIndent(act, "", "  ")
	if err != nil {
		body = []byte(`{"error":"failed to render action"}`)
	}
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(ts)
	b.WriteString("] ")
	b.WriteString(string(n.Act.Kind))
	b.WriteString(": \n ")
	b.Write(body)
	return b.String()
}

// renderNodes renders a slice of nodes, root-first, joined by single
// newlines, in the stable context rendering format the Model Provider
// expects.
func renderNodes(nodes []*action.Node) string {
	blocks := make([]string, len(nodes))
	for i, n := range nodes {
		blocks[i] = renderNode(n)
	}
	return strings.Join(blocks, "\n")
}

package dag

import "os"

// writeFile is a thin indirection over os.WriteFile so WriteTranscript's
// disk access is isolated to one line for clarity; not mocked in tests
// today but kept separate so a future test can swap it without touching
// dag.go's traversal logic.
func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

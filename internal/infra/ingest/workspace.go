package ingest

import (
	"fmt"
	"log"
	"os"
)

// Workspace is a per-request scratch directory under a configured root.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh directory under root, or under the system temp
// dir when root is empty.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "review-*")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Cleanup removes the workspace. Failures are logged only.
func (w *Workspace) Cleanup() {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Printf("cleanup error path=%s err=%v", w.Dir, err)
	}
}

package pydeps

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dillspilit/scripthub/internal/command"
)

// Index is the cached snapshot of installed packages for one environment:
// normalized package name to installed version string. The snapshot is
// rebuilt lazily in full and invalidated after every install; it is never
// patched incrementally.
type Index struct {
	mu       sync.Mutex
	runner   command.Runner
	python   string
	snapshot map[string]string
}

// NewIndex creates an index for the environment behind the given interpreter.
func NewIndex(runner command.Runner, pythonPath string) *Index {
	return &Index{runner: runner, python: pythonPath}
}

// pipListEntry matches one element of `pip list --format=json` output.
type pipListEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Snapshot returns the installed-package mapping, querying pip only when no
// cached snapshot exists. Consumers must treat a missing key as "not
// installed", not as an error.
func (ix *Index) Snapshot(ctx context.Context) (map[string]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.snapshot != nil {
		return ix.snapshot, nil
	}

	res, err := ix.runner.Run(ctx, "", ix.python, "-m", "pip", "list", "--format=json")
	if err != nil {
		return nil, fmt.Errorf("listing installed packages: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("pip list exited with status %d: %s", res.ExitCode, res.Stderr)
	}

	var entries []pipListEntry
	if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
		return nil, fmt.Errorf("parsing pip list output: %w", err)
	}

	snapshot := make(map[string]string, len(entries))
	for _, e := range entries {
		snapshot[NormalizeName(e.Name)] = e.Version
	}
	ix.snapshot = snapshot
	return snapshot, nil
}

// Invalidate drops the cached snapshot so the next Snapshot call rebuilds it.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.snapshot = nil
}

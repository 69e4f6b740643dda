package pyenv

import (
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pydeps"
)

// VenvDirName is the isolated environment directory inside a script's folder.
const VenvDirName = ".venv"

// Environment is one script's isolated runtime. It owns its package index
// cache and its lifecycle state; all transitions go through transition() so
// the single-flight rule lives in one place.
type Environment struct {
	Script string
	Dir    string // script working directory containing the venv

	mu     sync.Mutex
	state  domain.EnvState
	python string // interpreter path, set once Ready
	index  *pydeps.Index
}

// newEnvironment creates an Environment in the Absent state.
func newEnvironment(script, dir string) *Environment {
	return &Environment{Script: script, Dir: dir, state: domain.EnvAbsent}
}

// State returns the current lifecycle state.
func (e *Environment) State() domain.EnvState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Python returns the interpreter path, valid only when the state is Ready.
func (e *Environment) Python() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.python
}

// Index returns the environment's package index cache, non-nil once Ready.
func (e *Environment) Index() *pydeps.Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// transition atomically moves the environment between states. It returns
// false when the move is not legal from the current state, which is the one
// code path producing "already creating" rejections.
func (e *Environment) transition(from, to domain.EnvState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != from {
		return false
	}
	e.state = to
	return true
}

// markReady records the interpreter path and builds the index cache.
// Once Ready an environment is never silently recreated.
func (e *Environment) markReady(python string, index *pydeps.Index) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = domain.EnvReady
	e.python = python
	e.index = index
}

// markFailed leaves the environment retryable: the next EnsureReady call
// starts creation again.
func (e *Environment) markFailed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = domain.EnvFailed
}

// VenvPath returns the environment directory for a script directory.
func VenvPath(scriptDir string) string {
	return filepath.Join(scriptDir, VenvDirName)
}

// InterpreterPath returns the venv's python executable for the host OS.
func InterpreterPath(scriptDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(VenvPath(scriptDir), "Scripts", "python.exe")
	}
	return filepath.Join(VenvPath(scriptDir), "bin", "python")
}

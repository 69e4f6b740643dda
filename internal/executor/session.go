package executor

import (
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/dillspilit/scripthub/internal/domain"
)

// Session is one live script execution. It owns at most one child process
// and exists only between launch and reaping.
type Session struct {
	ID     string
	Script string

	mu    sync.Mutex
	state domain.SessionState
	cmd   *exec.Cmd
	done  chan struct{} // closed once the process is reaped
}

func newSession(script string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Script: script,
		state:  domain.SessionIdle,
		done:   make(chan struct{}),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition atomically moves the session between states, returning false
// when the move is not legal from the current state.
func (s *Session) transition(from, to domain.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// active reports whether the session still holds the single Running slot.
func (s *Session) active() bool {
	switch s.State() {
	case domain.SessionRunning, domain.SessionStopping:
		return true
	}
	return false
}

// occupied reports whether the session still claims the single Running
// slot. Unlike active, a freshly created session counts from the moment it
// is stored, so the slot is held through the window before its process
// starts.
func (s *Session) occupied() bool {
	switch s.State() {
	case domain.SessionFinished, domain.SessionFailed:
		return false
	}
	return true
}

// Done is closed once the child process has been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrScriptNotFound      = errors.New("script not found")
	ErrScriptAlreadyExists = errors.New("script with this name already exists")
	ErrBusy                = errors.New("a task of this kind is already in flight")
	ErrNotRunning          = errors.New("no script is currently running")
)

// ErrorKind categorizes orchestration failures. Subprocess failures are
// captured and turned into events carrying one of these kinds; they are
// never raised past the controller.
type ErrorKind string

const (
	// KindToolUnavailable means a required external tool (virtualenv, pip,
	// git) is missing and could not be installed. Fatal for the stage.
	KindToolUnavailable ErrorKind = "tool_unavailable"
	// KindCreationFailure means the environment-creation subprocess exited
	// non-zero. The environment returns to a retryable Failed state.
	KindCreationFailure ErrorKind = "creation_failure"
	// KindInstallFailure means the package install subprocess exited non-zero.
	KindInstallFailure ErrorKind = "install_failure"
	// KindProcessLaunchFailure means the script could not be started at all
	// (e.g. the script file is missing). No process was created.
	KindProcessLaunchFailure ErrorKind = "process_launch_failure"
)

// StageError is a categorized failure from one of the pipeline stages.
type StageError struct {
	Kind   ErrorKind
	Script string
	Detail string // captured diagnostic text, human-readable
	Cause  error
}

func (e *StageError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Script, e.Detail)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Script)
}

func (e *StageError) Unwrap() error { return e.Cause }

// NewStageError builds a StageError for a given pipeline stage failure.
func NewStageError(kind ErrorKind, script, detail string, cause error) *StageError {
	return &StageError{Kind: kind, Script: script, Detail: detail, Cause: cause}
}

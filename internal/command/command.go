// Package command wraps child-process invocation behind a small interface so
// the provisioning and install stages can be tested without a real Python
// toolchain on the machine.
package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// Result holds the outcome of a completed child process. A non-zero exit is
// reported through ExitCode, not through an error: callers decide whether a
// failing tool is fatal for their stage.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external tools (python, pip, git).
type Runner interface {
	// Run executes the command to completion and captures its output.
	// An error is returned only when the process could not be started at all.
	Run(ctx context.Context, dir string, name string, args ...string) (Result, error)

	// Stream executes the command, invoking onLine for every stdout line in
	// arrival order. Stderr is captured into the Result.
	Stream(ctx context.Context, dir string, onLine func(string), name string, args ...string) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner that invokes real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// The process never started (binary missing, permission denied).
		return res, err
	}
	return res, nil
}

// Stream implements Runner.
func (r *ExecRunner) Stream(ctx context.Context, dir string, onLine func(string), name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	scanLines(stdoutPipe, onLine)

	err = cmd.Wait()
	res := Result{Stderr: strings.TrimRight(stderr.String(), "\n")}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, err
	}
	return res, nil
}

// scanLines reads r line by line, tolerating lines longer than the default
// bufio limit (pip can emit very long download URLs).
func scanLines(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}

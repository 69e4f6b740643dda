// Package testutils provides shared helpers for package tests: a scripted
// fake command runner and environment setup.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/dillspilit/scripthub/internal/command"
)

// FakeCall records one invocation of the fake runner.
type FakeCall struct {
	Dir  string
	Name string
	Args []string
}

// FakeResponse is the scripted outcome for a matching command.
type FakeResponse struct {
	Result command.Result
	Err    error
	// Lines are emitted through onLine when the command is run via Stream.
	Lines []string
}

// FakeRunner implements command.Runner with scripted responses, keyed by the
// space-joined command line. Unmatched commands get the zero Result.
type FakeRunner struct {
	mu        sync.Mutex
	Responses map[string]FakeResponse
	calls     []FakeCall
}

var _ command.Runner = (*FakeRunner)(nil)

// NewFakeRunner creates an empty fake runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: make(map[string]FakeResponse)}
}

// On registers a scripted response for the given command line.
func (f *FakeRunner) On(cmdline string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[cmdline] = resp
	return f
}

// Calls returns a copy of every recorded invocation.
func (f *FakeRunner) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times a command line was invoked.
func (f *FakeRunner) CallCount(cmdline string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if cmdlineOf(c) == cmdline {
			n++
		}
	}
	return n
}

func cmdlineOf(c FakeCall) string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

func (f *FakeRunner) record(dir, name string, args []string) FakeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := FakeCall{Dir: dir, Name: name, Args: args}
	f.calls = append(f.calls, call)
	return f.Responses[cmdlineOf(call)]
}

// Run implements command.Runner.
func (f *FakeRunner) Run(ctx context.Context, dir string, name string, args ...string) (command.Result, error) {
	resp := f.record(dir, name, args)
	return resp.Result, resp.Err
}

// Stream implements command.Runner.
func (f *FakeRunner) Stream(ctx context.Context, dir string, onLine func(string), name string, args ...string) (command.Result, error) {
	resp := f.record(dir, name, args)
	for _, line := range resp.Lines {
		onLine(line)
	}
	return resp.Result, resp.Err
}

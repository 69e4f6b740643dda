// Package executor runs scripts as supervised child processes, streaming
// their output onto the event bus and enforcing the single-Running rule.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

// DefaultGracePeriod is the wait between the graceful termination signal and
// escalation to a forced kill.
const DefaultGracePeriod = 3 * time.Second

// Executor launches script processes. At most one session may be Running
// process-wide; concurrent starts are rejected, not queued.
type Executor struct {
	fs    afero.Fs
	pub   pubsub.Publisher
	grace time.Duration

	mu      sync.Mutex
	session *Session
}

// New creates an Executor with the given grace period (0 uses the default).
func New(fs afero.Fs, pub pubsub.Publisher, grace time.Duration) *Executor {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Executor{fs: fs, pub: pub, grace: grace}
}

// Current returns the session holding the Running slot, or nil.
func (ex *Executor) Current() *Session {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.session != nil && ex.session.active() {
		return ex.session
	}
	return nil
}

// Start launches the script inside its environment. It rejects a second
// start while another session occupies the slot, including one stored but
// not yet launched, and emits a launch-failure event (with no process
// created) when the script file is missing. Every started session ends in
// exactly one RunFinished event.
func (ex *Executor) Start(ctx context.Context, script domain.Script, pythonPath string) (*Session, error) {
	ex.mu.Lock()
	if ex.session != nil && ex.session.occupied() {
		ex.mu.Unlock()
		return nil, fmt.Errorf("%q is still running: %w", ex.session.Script, domain.ErrBusy)
	}
	session := newSession(script.Name)
	ex.session = session
	ex.mu.Unlock()

	if exists, err := afero.Exists(ex.fs, script.Path); err != nil || !exists {
		session.setState(domain.SessionFailed)
		close(session.done)
		launchErr := domain.NewStageError(domain.KindProcessLaunchFailure, script.Name,
			fmt.Sprintf("script file not found: %s", script.Path), err)
		ex.diagnostic(ctx, script.Name, launchErr.Error())
		ex.finish(ctx, session, -1, false)
		return nil, launchErr
	}

	cmd := exec.Command(pythonPath, script.Path)
	cmd.Dir = script.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		session.setState(domain.SessionFailed)
		close(session.done)
		launchErr := domain.NewStageError(domain.KindProcessLaunchFailure, script.Name, err.Error(), err)
		ex.diagnostic(ctx, script.Name, launchErr.Error())
		ex.finish(ctx, session, -1, false)
		return nil, launchErr
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		session.setState(domain.SessionFailed)
		close(session.done)
		launchErr := domain.NewStageError(domain.KindProcessLaunchFailure, script.Name, err.Error(), err)
		ex.diagnostic(ctx, script.Name, launchErr.Error())
		ex.finish(ctx, session, -1, false)
		return nil, launchErr
	}

	session.mu.Lock()
	session.cmd = cmd
	session.state = domain.SessionRunning
	session.mu.Unlock()

	slog.Info("Script started", "script", script.Name, "session", session.ID, "pid", cmd.Process.Pid)
	if err := pubsub.Publish(ctx, ex.pub, topics.RunStarted, script.Name, events.RunStarted{
		Script:    script.Name,
		SessionID: session.ID,
	}); err != nil {
		slog.Error("Failed to publish run start", "script", script.Name, "error", err)
	}

	go ex.supervise(context.WithoutCancel(ctx), session, cmd, stdout, &stderr)
	return session, nil
}

// supervise streams stdout, reaps the process, drains stderr as diagnostics
// and publishes the session's single terminal event.
func (ex *Executor) supervise(ctx context.Context, session *Session, cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := pubsub.Publish(ctx, ex.pub, topics.OutputLine, session.Script, events.OutputLine{
			Script: session.Script,
			Text:   scanner.Text(),
		}); err != nil {
			slog.Error("Failed to publish output line", "script", session.Script, "error", err)
		}
	}

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	// Captured stderr is advisory output, not necessarily an error.
	for _, line := range strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n") {
		if line != "" {
			ex.diagnostic(ctx, session.Script, line)
		}
	}

	session.setState(domain.SessionFinished)
	close(session.done)
	slog.Info("Script finished", "script", session.Script, "session", session.ID, "exit_code", exitCode)
	ex.finish(ctx, session, exitCode, exitCode == 0)
}

// Stop requests graceful termination of the running session, escalating to a
// forced kill after the grace period. Stopping when nothing runs is a no-op
// reported as an informational diagnostic.
func (ex *Executor) Stop(ctx context.Context) error {
	session := ex.Current()
	if session == nil {
		ex.diagnostic(ctx, "", "no script is running")
		return domain.ErrNotRunning
	}

	if !session.transition(domain.SessionRunning, domain.SessionStopping) {
		// Already stopping; the in-flight stop will finish the job.
		return nil
	}

	ex.diagnostic(ctx, session.Script, "stopping script")
	slog.Info("Stopping script", "script", session.Script, "session", session.ID)

	session.mu.Lock()
	proc := session.cmd.Process
	session.mu.Unlock()

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Signalling can fail on platforms without SIGTERM delivery or when
		// the process just exited; fall through to the escalation path.
		slog.Debug("Graceful signal failed", "script", session.Script, "error", err)
	}

	select {
	case <-session.Done():
		return nil
	case <-time.After(ex.grace):
	}

	slog.Warn("Grace period expired, killing process", "script", session.Script, "session", session.ID)
	if err := proc.Kill(); err != nil {
		slog.Debug("Kill failed", "script", session.Script, "error", err)
	}
	<-session.Done()
	return nil
}

func (ex *Executor) diagnostic(ctx context.Context, script, text string) {
	if err := pubsub.Publish(ctx, ex.pub, topics.DiagnosticLine, script, events.DiagnosticLine{
		Script: script,
		Text:   text,
	}); err != nil {
		slog.Error("Failed to publish diagnostic", "script", script, "error", err)
	}
}

// finish publishes the session's terminal event and releases the Running slot.
func (ex *Executor) finish(ctx context.Context, session *Session, exitCode int, ok bool) {
	if err := pubsub.Publish(ctx, ex.pub, topics.RunFinished, session.Script, events.RunFinished{
		Script:    session.Script,
		SessionID: session.ID,
		ExitCode:  exitCode,
		OK:        ok,
	}); err != nil {
		slog.Error("Failed to publish run completion", "script", session.Script, "error", err)
	}

	ex.mu.Lock()
	if ex.session == session {
		ex.session = nil
	}
	ex.mu.Unlock()
}

// Package runner is the orchestration controller: it sequences environment
// provisioning, the dependency check, an optional installation and process
// launch into a single prepare-and-run flow, driven by completion events.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/executor"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/pydeps"
	"github.com/dillspilit/scripthub/internal/pyenv"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

// SettingKeyAutoInstall enables installing missing dependencies without
// asking the caller.
const SettingKeyAutoInstall = "auto_install_deps"

// Settings is the per-script boolean configuration lookup the controller
// consults before prompting.
type Settings interface {
	Bool(script domain.Script, key string, def bool) bool
}

// InstallDecider answers the install-missing-dependencies question for one
// run request. It receives the unmet specifiers for display.
type InstallDecider func(missing []string) bool

// reqState is the per-run-request position in the controller state machine.
type reqState string

const (
	stateAwaitEnvironment reqState = "await_environment"
	stateAwaitInstall     reqState = "await_install"
	stateRunning          reqState = "running"
)

// runRequest is the controller's record of the one in-flight run.
type runRequest struct {
	script           domain.Script
	state            reqState
	decide           InstallDecider
	installAttempted bool // at most one install attempt per run request
}

// Controller glues the provisioner, installer and executor together. One run
// request is in flight at a time; workers report back exclusively through
// one-shot completion events on the bus.
type Controller struct {
	fs          afero.Fs
	pub         pubsub.Publisher
	sub         pubsub.Subscriber
	provisioner *pyenv.Provisioner
	installer   *pydeps.Installer
	exec        *executor.Executor
	settings    Settings

	mu     sync.Mutex
	active *runRequest
}

// New creates a Controller. Call Start before submitting run requests.
func New(fs afero.Fs, pub pubsub.Publisher, sub pubsub.Subscriber,
	provisioner *pyenv.Provisioner, installer *pydeps.Installer,
	exec *executor.Executor, settings Settings) *Controller {
	return &Controller{
		fs:          fs,
		pub:         pub,
		sub:         sub,
		provisioner: provisioner,
		installer:   installer,
		exec:        exec,
		settings:    settings,
	}
}

// Start subscribes the controller to the completion events that advance its
// state machine.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.sub.Subscribe(ctx, topics.ProvisioningFinished.Name(), c.onProvisioningFinished); err != nil {
		return err
	}
	if err := c.sub.Subscribe(ctx, topics.InstallFinished.Name(), c.onInstallFinished); err != nil {
		return err
	}
	return c.sub.Subscribe(ctx, topics.RunFinished.Name(), c.onRunFinished)
}

// Run submits a prepare-and-run request for a script. It returns immediately
// once the flow is underway; progress and the outcome arrive as events.
// A request while another is in flight is rejected, not queued.
func (c *Controller) Run(ctx context.Context, script domain.Script, decide InstallDecider) error {
	c.mu.Lock()
	if c.active != nil {
		name := c.active.script.Name
		c.mu.Unlock()
		return fmt.Errorf("run of %q is in progress: %w", name, domain.ErrBusy)
	}
	req := &runRequest{script: script, state: stateAwaitEnvironment, decide: decide}
	c.active = req
	c.mu.Unlock()

	slog.Info("Run requested", "script", script.Name)

	ready, err := c.provisioner.EnsureReady(ctx, script)
	if err != nil {
		c.abort(ctx, req, err.Error())
		return err
	}
	if !ready.Ready {
		// Provisioning runs in the background; onProvisioningFinished
		// re-enters the state machine.
		return nil
	}
	c.checkDependencies(ctx, req)
	return nil
}

// Stop forwards a termination request for the running script.
func (c *Controller) Stop(ctx context.Context) error {
	return c.exec.Stop(ctx)
}

// Active returns the name of the script whose run request is in flight, or "".
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.script.Name
}

// Invalidate ends the in-flight run request for a script whose files changed
// underneath it. A request that has already launched is left alone; its
// process keeps the environment it started with.
func (c *Controller) Invalidate(name string) {
	c.mu.Lock()
	req := c.active
	if req == nil || req.script.Name != name || req.state == stateRunning {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.abort(context.Background(), req, fmt.Sprintf("run of %q canceled: script files changed", name))
}

// current returns the active request only when the event belongs to it and
// it is in the expected state: the stale-result guard. Completions for any
// other script are discarded silently.
func (c *Controller) current(script string, want reqState) *runRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.script.Name != script || c.active.state != want {
		return nil
	}
	return c.active
}

func (c *Controller) onProvisioningFinished(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(topics.ProvisioningFinished, msg)
	if err != nil {
		return err
	}

	req := c.current(msg.Script, stateAwaitEnvironment)
	if req == nil {
		slog.Debug("Discarding stale provisioning result", "script", msg.Script)
		return nil
	}

	if !payload.OK {
		// The failure event itself already carries the cause; the run
		// request simply ends before any dependency check.
		c.clear(req)
		slog.Info("Run aborted, environment not available", "script", msg.Script)
		return nil
	}

	c.checkDependencies(ctx, req)
	return nil
}

// environment re-fetches the script's tracked environment and verifies it
// is still Ready. A file change mid-run drops the tracked record, so the
// fetch can hand back a fresh one with no interpreter and no index; touching
// those would crash the event handler goroutine.
func (c *Controller) environment(ctx context.Context, req *runRequest) (*pyenv.Environment, bool) {
	env := c.provisioner.Environment(req.script)
	if env.State() != domain.EnvReady || env.Index() == nil {
		c.abort(ctx, req, fmt.Sprintf("environment for %q is no longer available", req.script.Name))
		return nil, false
	}
	return env, true
}

// checkDependencies is the state the flow loops back to after an install:
// satisfaction is always re-verified against a fresh snapshot rather than
// assumed.
func (c *Controller) checkDependencies(ctx context.Context, req *runRequest) {
	env, ok := c.environment(ctx, req)
	if !ok {
		return
	}

	manifest, err := pydeps.LoadManifest(c.fs, req.script.Dir)
	if err != nil {
		c.abort(ctx, req, fmt.Sprintf("cannot read requirements: %v", err))
		return
	}

	ok, missing, err := pydeps.Check(ctx, manifest, env.Index())
	if err != nil {
		c.abort(ctx, req, fmt.Sprintf("dependency check failed: %v", err))
		return
	}

	if err := pubsub.Publish(ctx, c.pub, topics.DependencyCheckResult, req.script.Name,
		events.DependencyCheckResult{Script: req.script.Name, OK: ok, Missing: missing}); err != nil {
		slog.Error("Failed to publish dependency check result", "script", req.script.Name, "error", err)
	}

	if ok {
		c.launch(ctx, req)
		return
	}

	if req.installAttempted {
		// One install attempt per run request keeps the loop terminating;
		// a manifest pip cannot satisfy will not be retried blindly.
		c.abort(ctx, req, "dependencies still unsatisfied after installation")
		return
	}

	install := c.settings.Bool(req.script, SettingKeyAutoInstall, false)
	if !install && req.decide != nil {
		install = req.decide(missing)
	}
	if !install {
		c.abort(ctx, req, "run canceled: missing dependencies were not installed")
		return
	}

	req.installAttempted = true
	c.setState(req, stateAwaitInstall)
	if err := c.installer.Install(ctx, req.script.Name, env.Python(), req.script.Dir, env.Index()); err != nil {
		c.abort(ctx, req, fmt.Sprintf("could not start installation: %v", err))
	}
}

func (c *Controller) onInstallFinished(ctx context.Context, msg pubsub.Message) error {
	payload, err := pubsub.Decode(topics.InstallFinished, msg)
	if err != nil {
		return err
	}

	req := c.current(msg.Script, stateAwaitInstall)
	if req == nil {
		slog.Debug("Discarding stale install result", "script", msg.Script)
		return nil
	}

	if !payload.OK {
		c.clear(req)
		slog.Info("Run aborted, installation failed", "script", msg.Script, "detail", payload.Detail)
		return nil
	}

	// Loop back to the decision point rather than assuming satisfaction.
	c.setState(req, stateAwaitEnvironment)
	c.checkDependencies(ctx, req)
	return nil
}

func (c *Controller) launch(ctx context.Context, req *runRequest) {
	env, ok := c.environment(ctx, req)
	if !ok {
		return
	}
	c.setState(req, stateRunning)

	if _, err := c.exec.Start(ctx, req.script, env.Python()); err != nil {
		// The executor already emitted the failure and terminal events;
		// onRunFinished clears the request.
		slog.Info("Launch failed", "script", req.script.Name, "error", err)
	}
}

func (c *Controller) onRunFinished(ctx context.Context, msg pubsub.Message) error {
	req := c.current(msg.Script, stateRunning)
	if req == nil {
		slog.Debug("Discarding stale run result", "script", msg.Script)
		return nil
	}
	c.clear(req)
	slog.Info("Run request completed", "script", msg.Script)
	return nil
}

// abort ends the active run request with a diagnostic; every failure path
// emits exactly one.
func (c *Controller) abort(ctx context.Context, req *runRequest, reason string) {
	if err := pubsub.Publish(ctx, c.pub, topics.DiagnosticLine, req.script.Name,
		events.DiagnosticLine{Script: req.script.Name, Text: reason}); err != nil {
		slog.Error("Failed to publish abort diagnostic", "script", req.script.Name, "error", err)
	}
	c.clear(req)
	slog.Info("Run aborted", "script", req.script.Name, "reason", reason)
}

func (c *Controller) setState(req *runRequest, state reqState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req.state = state
}

func (c *Controller) clear(req *runRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == req {
		c.active = nil
	}
}

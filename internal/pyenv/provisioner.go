// Package pyenv provisions one isolated Python environment per script,
// creating virtualenvs in the background and tracking their lifecycle.
package pyenv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/pydeps"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

// Readiness is the synchronous answer to EnsureReady: either the environment
// is usable now, or creation is pending and a ProvisioningFinished event
// will follow.
type Readiness struct {
	Ready      bool
	PythonPath string
	Env        *Environment
}

// Provisioner owns every script's Environment and runs at most one creation
// task per script at a time.
type Provisioner struct {
	fs         afero.Fs
	runner     command.Runner
	pub        pubsub.Publisher
	basePython string // host interpreter used to bootstrap virtualenvs

	mu   sync.Mutex
	envs map[string]*Environment
}

// NewProvisioner creates a Provisioner bootstrapping venvs with basePython.
func NewProvisioner(fs afero.Fs, runner command.Runner, pub pubsub.Publisher, basePython string) *Provisioner {
	return &Provisioner{
		fs:         fs,
		runner:     runner,
		pub:        pub,
		basePython: basePython,
		envs:       make(map[string]*Environment),
	}
}

// Environment returns the tracked environment for a script, creating the
// Absent placeholder on first reference.
func (p *Provisioner) Environment(script domain.Script) *Environment {
	p.mu.Lock()
	defer p.mu.Unlock()
	env, ok := p.envs[script.Name]
	if !ok {
		env = newEnvironment(script.Name, script.Dir)
		p.envs[script.Name] = env
	}
	return env
}

// Forget drops tracked state for a script, used when a script is deleted or
// renamed so stale environments are never reused under a new identity.
func (p *Provisioner) Forget(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.envs, name)
}

// EnsureReady returns the environment synchronously when it is Ready, and
// otherwise starts (at most) one background creation task and reports
// Pending. Calling it again while creation is in flight neither blocks nor
// starts duplicate work; callers wait for the ProvisioningFinished event.
// After a Failed creation, the next call retries.
func (p *Provisioner) EnsureReady(ctx context.Context, script domain.Script) (Readiness, error) {
	env := p.Environment(script)

	switch env.State() {
	case domain.EnvReady:
		return Readiness{Ready: true, PythonPath: env.Python(), Env: env}, nil
	case domain.EnvCreating:
		return Readiness{Env: env}, nil
	}

	// A venv left on disk from a previous run counts as Ready without any
	// side effects.
	python := InterpreterPath(env.Dir)
	if exists, err := afero.Exists(p.fs, python); err == nil && exists {
		env.markReady(python, pydeps.NewIndex(p.runner, python))
		slog.Debug("Found existing environment", "script", script.Name, "python", python)
		return Readiness{Ready: true, PythonPath: python, Env: env}, nil
	}

	from := env.State() // Absent or Failed, both may start creation
	if !env.transition(from, domain.EnvCreating) {
		// Lost the race to another caller; treat as pending.
		return Readiness{Env: env}, nil
	}

	if err := pubsub.Publish(ctx, p.pub, topics.ProvisioningStarted, script.Name,
		events.ProvisioningStarted{Script: script.Name}); err != nil {
		slog.Error("Failed to publish provisioning start", "script", script.Name, "error", err)
	}

	// Environment creation is not cancellable: a half-created venv is unsafe
	// to abandon, so the worker detaches from the caller's context.
	workCtx := context.WithoutCancel(ctx)
	go p.create(workCtx, env)

	return Readiness{Env: env}, nil
}

// create is the background creation task. It ends in exactly one
// ProvisioningFinished event and leaves the environment Ready or Failed.
func (p *Provisioner) create(ctx context.Context, env *Environment) {
	fail := func(kind domain.ErrorKind, detail string, cause error) {
		env.markFailed()
		stageErr := domain.NewStageError(kind, env.Script, detail, cause)
		slog.Error("Environment creation failed", "script", env.Script, "error", stageErr)
		p.publishFinished(ctx, env.Script, events.ProvisioningFinished{
			Script: env.Script,
			OK:     false,
			Detail: stageErr.Error(),
		})
	}

	p.progress(ctx, env.Script, 10)

	// Verify the creation tool, installing it if missing.
	if res, err := p.runner.Run(ctx, "", p.basePython, "-m", "virtualenv", "--version"); err != nil {
		fail(domain.KindToolUnavailable, fmt.Sprintf("host interpreter %q not runnable", p.basePython), err)
		return
	} else if res.ExitCode != 0 {
		slog.Info("virtualenv not found, installing it", "script", env.Script)
		res, err := p.runner.Run(ctx, "", p.basePython, "-m", "pip", "install", "virtualenv")
		if err != nil || res.ExitCode != 0 {
			fail(domain.KindToolUnavailable, "virtualenv is missing and could not be installed: "+res.Stderr, err)
			return
		}
	}
	p.progress(ctx, env.Script, 30)

	// Create the isolated environment.
	venvDir := VenvPath(env.Dir)
	res, err := p.runner.Run(ctx, "", p.basePython, "-m", "virtualenv", venvDir)
	if err != nil {
		fail(domain.KindCreationFailure, "could not start virtualenv", err)
		return
	}
	p.emitToolOutput(ctx, env.Script, res)
	if res.ExitCode != 0 {
		fail(domain.KindCreationFailure, fmt.Sprintf("virtualenv exited with status %d: %s", res.ExitCode, res.Stderr), nil)
		return
	}
	p.progress(ctx, env.Script, 80)

	// Verify the package installer works inside the new environment.
	python := InterpreterPath(env.Dir)
	res, err = p.runner.Run(ctx, "", python, "-m", "pip", "--version")
	if err != nil || res.ExitCode != 0 {
		fail(domain.KindCreationFailure, "pip is not functional in the new environment: "+res.Stderr, err)
		return
	}

	env.markReady(python, pydeps.NewIndex(p.runner, python))
	p.progress(ctx, env.Script, 100)
	slog.Info("Environment provisioned", "script", env.Script, "python", python)

	p.publishFinished(ctx, env.Script, events.ProvisioningFinished{
		Script:     env.Script,
		OK:         true,
		PythonPath: python,
	})
}

func (p *Provisioner) progress(ctx context.Context, script string, percent int) {
	if err := pubsub.Publish(ctx, p.pub, topics.ProvisioningProgress, script,
		events.ProvisioningProgress{Script: script, Percent: percent}); err != nil {
		slog.Error("Failed to publish provisioning progress", "script", script, "error", err)
	}
}

func (p *Provisioner) publishFinished(ctx context.Context, script string, payload events.ProvisioningFinished) {
	if err := pubsub.Publish(ctx, p.pub, topics.ProvisioningFinished, script, payload); err != nil {
		slog.Error("Failed to publish provisioning completion", "script", script, "error", err)
	}
}

// emitToolOutput forwards creation-tool output as advisory diagnostics.
func (p *Provisioner) emitToolOutput(ctx context.Context, script string, res command.Result) {
	for _, text := range []string{res.Stdout, res.Stderr} {
		if text == "" {
			continue
		}
		if err := pubsub.Publish(ctx, p.pub, topics.DiagnosticLine, script,
			events.DiagnosticLine{Script: script, Text: text}); err != nil {
			slog.Error("Failed to publish diagnostic", "script", script, "error", err)
		}
	}
}

package pydeps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

// Check evaluates a manifest against an environment's package index.
// It returns whether every specifier is satisfied and, when not, the full
// list of unmet specifiers with installed-vs-required detail. A nil or
// empty manifest is trivially satisfied.
func Check(ctx context.Context, m *Manifest, idx *Index) (bool, []string, error) {
	if m.IsEmpty() {
		return true, nil, nil
	}

	installed, err := idx.Snapshot(ctx)
	if err != nil {
		return false, nil, err
	}

	var missing []string
	for _, spec := range m.Specifiers {
		version, present := installed[spec.Name]
		switch {
		case !present:
			missing = append(missing, fmt.Sprintf("%s (not installed)", spec.Raw))
		case !spec.SatisfiedBy(ParseVersion(version)):
			missing = append(missing, fmt.Sprintf("%s (installed %s)", spec.Raw, version))
		}
	}
	return len(missing) == 0, missing, nil
}

// Installer runs dependency installations, one at a time per script
// environment, streaming progress onto the event bus.
type Installer struct {
	fs     afero.Fs
	runner command.Runner
	pub    pubsub.Publisher

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewInstaller creates an Installer publishing onto the given bus.
func NewInstaller(fs afero.Fs, runner command.Runner, pub pubsub.Publisher) *Installer {
	return &Installer{
		fs:       fs,
		runner:   runner,
		pub:      pub,
		inFlight: make(map[string]bool),
	}
}

// begin is the single transition point into the installing state. It is the
// only code path that produces a busy rejection.
func (in *Installer) begin(script string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.inFlight[script] {
		return fmt.Errorf("install for %q: %w", script, domain.ErrBusy)
	}
	in.inFlight[script] = true
	return nil
}

func (in *Installer) end(script string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.inFlight, script)
}

// Install asynchronously installs the script's manifest into its environment.
// A second call while one is in flight is rejected with domain.ErrBusy. The
// outcome arrives as exactly one InstallFinished event; on success the
// environment's package index is invalidated before the event is published.
//
// Installation is not cancellable once started: a half-installed environment
// is worse than a slow one, so the worker detaches from the caller's context.
func (in *Installer) Install(ctx context.Context, script, pythonPath, scriptDir string, idx *Index) error {
	manifest, err := LoadManifest(in.fs, scriptDir)
	if err != nil {
		return err
	}

	if err := in.begin(script); err != nil {
		return err
	}

	workCtx := context.WithoutCancel(ctx)
	go func() {
		defer in.end(script)
		in.run(workCtx, script, pythonPath, scriptDir, manifest, idx)
	}()
	return nil
}

func (in *Installer) run(ctx context.Context, script, pythonPath, scriptDir string, manifest *Manifest, idx *Index) {
	publishFinished := func(ok bool, detail string) {
		if err := pubsub.Publish(ctx, in.pub, topics.InstallFinished, script, events.InstallFinished{
			Script: script,
			OK:     ok,
			Detail: detail,
		}); err != nil {
			slog.Error("Failed to publish install completion", "script", script, "error", err)
		}
	}

	if err := pubsub.Publish(ctx, in.pub, topics.InstallStarted, script, events.InstallStarted{Script: script}); err != nil {
		slog.Error("Failed to publish install start", "script", script, "error", err)
	}

	// Nothing to install: trivially successful, no environment mutation.
	if manifest.IsEmpty() {
		publishFinished(true, "no dependencies to install")
		return
	}

	slog.Info("Installing dependencies", "script", script, "specifiers", len(manifest.Specifiers))

	// Upgrade the installer tool itself first; a failure here is advisory,
	// the batch install below is the authoritative step.
	if res, err := in.runner.Run(ctx, scriptDir, pythonPath, "-m", "pip", "install", "--upgrade", "pip"); err != nil {
		publishFinished(false, fmt.Sprintf("pip is not functional: %v", err))
		return
	} else if res.ExitCode != 0 {
		slog.Warn("pip self-upgrade failed, continuing", "script", script, "stderr", res.Stderr)
	}

	progress := 0
	onLine := func(line string) {
		// Coarse, monotonically non-decreasing, capped below 100 until done.
		if progress < 95 {
			progress += 3
			if progress > 95 {
				progress = 95
			}
		}
		if err := pubsub.Publish(ctx, in.pub, topics.InstallProgress, script, events.InstallProgress{
			Script:  script,
			Percent: progress,
			Line:    line,
		}); err != nil {
			slog.Error("Failed to publish install progress", "script", script, "error", err)
		}
	}

	res, err := in.runner.Stream(ctx, scriptDir, onLine, pythonPath, "-m", "pip", "install", "-r", ManifestFileName)
	if err != nil {
		publishFinished(false, fmt.Sprintf("could not start pip: %v", err))
		return
	}
	if res.ExitCode != 0 {
		detail := res.Stderr
		if detail == "" {
			detail = fmt.Sprintf("pip install exited with status %d", res.ExitCode)
		}
		publishFinished(false, detail)
		return
	}

	// The snapshot is stale the moment an install succeeds.
	idx.Invalidate()

	if err := pubsub.Publish(ctx, in.pub, topics.InstallProgress, script, events.InstallProgress{
		Script:  script,
		Percent: 100,
	}); err != nil {
		slog.Error("Failed to publish install progress", "script", script, "error", err)
	}
	publishFinished(true, "dependencies installed")
}

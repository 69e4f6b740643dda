// Package gitsync keeps the scripts root up to date from a remote git
// repository. The remote is cloned once into a hidden directory under the
// root and pulled on every sync; script folders are then copied in without
// touching local environments or settings.
package gitsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/registry"
	"github.com/dillspilit/scripthub/internal/settings"
)

// RepoDirName is the clone location inside the scripts root.
const RepoDirName = ".repo"

// ErrNoRemote is returned when syncing without a configured repository URL.
var ErrNoRemote = errors.New("no script repository configured")

// localOnlyFiles are never overwritten by a sync.
var localOnlyFiles = map[string]bool{
	settings.FileName:    true,
	registry.LogFileName: true,
}

// Syncer fetches the remote script collection and merges it into the root.
type Syncer struct {
	fs     afero.Fs
	runner command.Runner
	root   string
	remote string
}

// New creates a Syncer for the given remote URL. An empty URL disables
// syncing.
func New(fs afero.Fs, runner command.Runner, root, remote string) *Syncer {
	return &Syncer{fs: fs, runner: runner, root: root, remote: remote}
}

// Sync clones or updates the local mirror and copies script folders into the
// root. It returns the names of scripts whose files changed.
func (s *Syncer) Sync(ctx context.Context) ([]string, error) {
	if s.remote == "" {
		return nil, ErrNoRemote
	}

	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scripts root: %w", err)
	}

	repoDir := filepath.Join(s.root, RepoDirName)
	cloned, err := afero.DirExists(s.fs, filepath.Join(repoDir, ".git"))
	if err != nil {
		return nil, fmt.Errorf("failed to stat repository mirror: %w", err)
	}

	if cloned {
		if err := s.update(ctx, repoDir); err != nil {
			return nil, err
		}
	} else {
		if err := s.clone(ctx, repoDir); err != nil {
			return nil, err
		}
	}

	return s.copyScripts(repoDir)
}

func (s *Syncer) clone(ctx context.Context, repoDir string) error {
	slog.Info("Cloning script repository", "remote", s.remote)
	res, err := s.runner.Run(ctx, s.root, "git", "clone", s.remote, repoDir)
	if err != nil {
		return fmt.Errorf("git is not available: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git clone failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// update pulls fast-forward only; when local changes block the pull, the
// mirror is forcibly reset to the fetched remote state. The mirror holds no
// local work worth preserving.
func (s *Syncer) update(ctx context.Context, repoDir string) error {
	res, err := s.runner.Run(ctx, repoDir, "git", "pull", "--ff-only")
	if err != nil {
		return fmt.Errorf("git is not available: %w", err)
	}
	if res.ExitCode == 0 {
		return nil
	}

	slog.Warn("git pull failed, resetting mirror", "stderr", strings.TrimSpace(res.Stderr))

	if res, err = s.runner.Run(ctx, repoDir, "git", "fetch", "origin"); err != nil {
		return fmt.Errorf("git is not available: %w", err)
	} else if res.ExitCode != 0 {
		return fmt.Errorf("git fetch failed: %s", strings.TrimSpace(res.Stderr))
	}

	if res, err = s.runner.Run(ctx, repoDir, "git", "reset", "--hard", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("git is not available: %w", err)
	} else if res.ExitCode != 0 {
		return fmt.Errorf("git reset failed: %s", strings.TrimSpace(res.Stderr))
	}
	return nil
}

// copyScripts merges every top-level script folder of the mirror into the
// root, skipping environments and local-only files.
func (s *Syncer) copyScripts(repoDir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository mirror: %w", err)
	}

	changedSet := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		changed, err := s.copyDir(filepath.Join(repoDir, entry.Name()),
			filepath.Join(s.root, entry.Name()))
		if err != nil {
			return nil, err
		}
		if changed {
			changedSet[entry.Name()] = true
		}
	}

	changed := make([]string, 0, len(changedSet))
	for name := range changedSet {
		changed = append(changed, name)
	}
	sort.Strings(changed)

	slog.Info("Synced scripts from repository", "changed", len(changed))
	return changed, nil
}

func (s *Syncer) copyDir(src, dst string) (bool, error) {
	changed := false
	err := afero.Walk(s.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return s.fs.MkdirAll(dst, 0o755)
		}

		base := filepath.Base(path)
		if info.IsDir() {
			if base == ".venv" || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return s.fs.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if localOnlyFiles[base] {
			return nil
		}

		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if existing, err := afero.ReadFile(s.fs, target); err == nil && bytes.Equal(existing, data) {
			return nil
		}
		if err := afero.WriteFile(s.fs, target, data, info.Mode().Perm()); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return changed, nil
}

// Package registry manages the on-disk script collection: one directory per
// script under a common root, with pinning and a persisted listing order.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pydeps"
)

const (
	// ScriptFileName is the entry point inside every script directory.
	ScriptFileName = "script.py"

	// LogFileName collects the output of past runs, per script.
	LogFileName = "script_log.txt"

	pinnedFileName = "pinned_scripts.json"
	orderFileName  = "scripts_order.json"
)

// ChangeFunc is called with a script name whenever that script's files
// change on disk or the script is renamed or removed, so callers can drop
// state keyed by the old identity.
type ChangeFunc func(name string)

// Registry is the script collection rooted at a single directory.
type Registry struct {
	fs   afero.Fs
	root string

	mu            sync.RWMutex
	scripts       map[string]*domain.Script
	pinned        map[string]bool
	order         []string
	onChange      ChangeFunc
	watcher       *fsnotify.Watcher
	watcherActive bool
}

// New creates a Registry over the given filesystem root. Call Load before
// listing.
func New(fs afero.Fs, root string) *Registry {
	return &Registry{
		fs:      fs,
		root:    root,
		scripts: make(map[string]*domain.Script),
		pinned:  make(map[string]bool),
	}
}

// OnChange registers the invalidation hook. At most one is supported.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Registry) notify(name string) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn(name)
	}
}

// Load scans the root for script directories and reads the pin and order
// state. A missing root is not an error; the collection is empty.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scripts = make(map[string]*domain.Script)

	exists, err := afero.DirExists(r.fs, r.root)
	if err != nil {
		return fmt.Errorf("failed to stat scripts root: %w", err)
	}
	if !exists {
		slog.Debug("Scripts root does not exist", "path", r.root)
		return nil
	}

	entries, err := afero.ReadDir(r.fs, r.root)
	if err != nil {
		return fmt.Errorf("failed to read scripts root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(r.root, entry.Name())
		path := filepath.Join(dir, ScriptFileName)
		info, err := r.fs.Stat(path)
		if err != nil {
			slog.Debug("Skipping directory without a script file", "path", dir)
			continue
		}
		r.scripts[entry.Name()] = &domain.Script{
			Name:         entry.Name(),
			Dir:          dir,
			Path:         path,
			LastModified: info.ModTime(),
		}
	}

	r.pinned = make(map[string]bool)
	for _, name := range r.loadNames(pinnedFileName) {
		r.pinned[name] = true
	}
	r.order = r.loadNames(orderFileName)
	r.applyPins()

	slog.Info("Loaded script registry", "path", r.root, "scripts", len(r.scripts))
	return nil
}

// List returns every script: pinned ones first in the saved order, the rest
// sorted by name.
func (r *Registry) List() []domain.Script {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]domain.Script, 0, len(r.scripts))

	for _, name := range r.order {
		if s, ok := r.scripts[name]; ok && r.pinned[name] {
			out = append(out, *s)
			seen[name] = true
		}
	}

	rest := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, *r.scripts[name])
	}
	return out
}

// Get returns a script by name.
func (r *Registry) Get(name string) (domain.Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	if !ok {
		return domain.Script{}, fmt.Errorf("script %q: %w", name, domain.ErrScriptNotFound)
	}
	return *s, nil
}

// Add imports a source file as a new script: the file is copied to
// <root>/<name>/script.py, its imports are analyzed, and a requirements file
// is generated when any external packages are referenced.
func (r *Registry) Add(name, sourcePath string) (domain.Script, error) {
	if err := domain.ValidateScriptName(name); err != nil {
		return domain.Script{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scripts[name]; exists {
		return domain.Script{}, fmt.Errorf("script %q: %w", name, domain.ErrScriptAlreadyExists)
	}

	content, err := afero.ReadFile(r.fs, sourcePath)
	if err != nil {
		return domain.Script{}, fmt.Errorf("failed to read source file: %w", err)
	}

	dir := filepath.Join(r.root, name)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return domain.Script{}, fmt.Errorf("failed to create script directory: %w", err)
	}

	path := filepath.Join(dir, ScriptFileName)
	if err := afero.WriteFile(r.fs, path, content, 0o755); err != nil {
		return domain.Script{}, fmt.Errorf("failed to write script file: %w", err)
	}

	if imports := pydeps.Analyze(string(content)); len(imports) > 0 {
		if err := pydeps.WriteManifest(r.fs, dir, imports); err != nil {
			slog.Warn("Failed to write generated requirements", "script", name, "error", err)
		} else {
			slog.Info("Generated requirements from imports", "script", name, "packages", len(imports))
		}
	}

	script := &domain.Script{Name: name, Dir: dir, Path: path, LastModified: time.Now()}
	r.scripts[name] = script

	slog.Info("Added script", "script", name, "path", path)
	return *script, nil
}

// Rename moves a script directory and carries the pin and order entries over
// to the new name.
func (r *Registry) Rename(oldName, newName string) error {
	if err := domain.ValidateScriptName(newName); err != nil {
		return err
	}

	r.mu.Lock()
	script, ok := r.scripts[oldName]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("script %q: %w", oldName, domain.ErrScriptNotFound)
	}
	if _, exists := r.scripts[newName]; exists {
		r.mu.Unlock()
		return fmt.Errorf("script %q: %w", newName, domain.ErrScriptAlreadyExists)
	}

	newDir := filepath.Join(r.root, newName)
	if err := r.fs.Rename(script.Dir, newDir); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to rename script directory: %w", err)
	}

	delete(r.scripts, oldName)
	r.scripts[newName] = &domain.Script{
		Name:         newName,
		Dir:          newDir,
		Path:         filepath.Join(newDir, ScriptFileName),
		Pinned:       r.pinned[oldName],
		LastModified: script.LastModified,
	}

	if r.pinned[oldName] {
		delete(r.pinned, oldName)
		r.pinned[newName] = true
	}
	for i, n := range r.order {
		if n == oldName {
			r.order[i] = newName
		}
	}
	r.persistPins()
	r.mu.Unlock()

	r.notify(oldName)
	slog.Info("Renamed script", "from", oldName, "to", newName)
	return nil
}

// Remove deletes the script directory and purges its pin and order entries.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	script, ok := r.scripts[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("script %q: %w", name, domain.ErrScriptNotFound)
	}

	if err := r.fs.RemoveAll(script.Dir); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("failed to remove script directory: %w", err)
	}

	delete(r.scripts, name)
	delete(r.pinned, name)
	r.order = removeName(r.order, name)
	r.persistPins()
	r.mu.Unlock()

	r.notify(name)
	slog.Info("Removed script", "script", name)
	return nil
}

// SetPinned pins or unpins a script. Newly pinned scripts go to the end of
// the saved order.
func (r *Registry) SetPinned(name string, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	script, ok := r.scripts[name]
	if !ok {
		return fmt.Errorf("script %q: %w", name, domain.ErrScriptNotFound)
	}

	script.Pinned = pinned
	if pinned {
		if !r.pinned[name] {
			r.pinned[name] = true
			r.order = append(removeName(r.order, name), name)
		}
	} else {
		delete(r.pinned, name)
		r.order = removeName(r.order, name)
	}
	r.persistPins()
	return nil
}

// AppendLog appends one line to the script's run log.
func (r *Registry) AppendLog(name, text string) error {
	r.mu.RLock()
	script, ok := r.scripts[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("script %q: %w", name, domain.ErrScriptNotFound)
	}

	f, err := r.fs.OpenFile(filepath.Join(script.Dir, LogFileName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("failed to append to run log: %w", err)
	}
	return nil
}

// applyPins mirrors the pin set onto the loaded scripts and drops stale
// entries for scripts that no longer exist.
func (r *Registry) applyPins() {
	for name := range r.pinned {
		if s, ok := r.scripts[name]; ok {
			s.Pinned = true
		} else {
			delete(r.pinned, name)
		}
	}
	kept := r.order[:0]
	for _, name := range r.order {
		if _, ok := r.scripts[name]; ok {
			kept = append(kept, name)
		}
	}
	r.order = kept
}

func (r *Registry) loadNames(file string) []string {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.root, file))
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		slog.Warn("Ignoring unreadable registry state file", "file", file, "error", err)
		return nil
	}
	return names
}

func (r *Registry) saveNames(file string, names []string) {
	if names == nil {
		names = []string{}
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		slog.Error("Failed to encode registry state", "file", file, "error", err)
		return
	}
	if err := afero.WriteFile(r.fs, filepath.Join(r.root, file), data, 0o644); err != nil {
		slog.Error("Failed to write registry state", "file", file, "error", err)
	}
}

func (r *Registry) persistPins() {
	pinned := make([]string, 0, len(r.pinned))
	for name := range r.pinned {
		pinned = append(pinned, name)
	}
	sort.Strings(pinned)
	r.saveNames(pinnedFileName, pinned)
	r.saveNames(orderFileName, r.order)
}

func removeName(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// StartWatcher begins monitoring the scripts root for external changes.
// Watching requires a real filesystem path; when the root does not exist on
// the host this is a no-op.
func (r *Registry) StartWatcher(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcherActive {
		slog.Debug("Script watcher already active")
		return nil
	}
	if _, err := os.Stat(r.root); err != nil {
		slog.Debug("Scripts root not watchable, skipping watcher setup", "path", r.root)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	if err := watcher.Add(r.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch scripts root: %w", err)
	}
	entries, _ := os.ReadDir(r.root)
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			if err := watcher.Add(filepath.Join(r.root, entry.Name())); err != nil {
				slog.Error("Failed to watch script directory", "path", entry.Name(), "error", err)
			}
		}
	}

	r.watcher = watcher
	r.watcherActive = true
	go r.watchFiles(ctx, watcher)

	slog.Debug("Started file system watcher", "path", r.root)
	return nil
}

// StopWatcher stops the file system watcher.
func (r *Registry) StopWatcher() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
		r.watcherActive = false
	}
}

func (r *Registry) watchFiles(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		r.mu.Lock()
		if r.watcher == watcher {
			r.watcher = nil
			r.watcherActive = false
		}
		r.mu.Unlock()
		watcher.Close()
		slog.Info("File system watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			r.handleFileEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File system watcher error", "error", err)
		}
	}
}

// handleFileEvent reloads the registry on structural changes and invalidates
// per-script state when a script or manifest file changes.
func (r *Registry) handleFileEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(r.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	parts := strings.Split(rel, string(filepath.Separator))
	name := parts[0]
	if strings.HasPrefix(name, ".") {
		return
	}

	// A new top-level directory is a new script folder; watch it too.
	if len(parts) == 1 && event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				slog.Error("Failed to watch new script directory", "path", event.Name, "error", err)
			}
		}
	}

	base := filepath.Base(event.Name)
	structural := len(parts) == 1 ||
		base == ScriptFileName || base == pydeps.ManifestFileName
	if !structural {
		return
	}

	slog.Debug("Scripts root changed, reloading", "event", event.Op.String(), "path", event.Name)
	if err := r.Load(); err != nil {
		slog.Error("Failed to reload script registry", "error", err)
		return
	}
	r.notify(name)
}

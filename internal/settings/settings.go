// Package settings is the per-script key/value store, persisted as a
// settings.json file inside each script directory.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/dillspilit/scripthub/internal/domain"
)

// FileName is the per-script settings file.
const FileName = "settings.json"

// Store reads and writes per-script settings files.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store over the given filesystem.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// open loads the script's settings file into a viper instance. A missing
// file yields an empty instance.
func (s *Store) open(script domain.Script) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(s.fs)
	v.SetConfigFile(s.path(script))
	v.SetConfigType("json")

	exists, err := afero.Exists(s.fs, s.path(script))
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if !exists {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings for %q: %w", script.Name, err)
	}
	return v, nil
}

func (s *Store) path(script domain.Script) string {
	return filepath.Join(script.Dir, FileName)
}

// Get returns the value stored under key, or ok=false when unset.
func (s *Store) Get(script domain.Script, key string) (any, bool, error) {
	v, err := s.open(script)
	if err != nil {
		return nil, false, err
	}
	if !v.IsSet(key) {
		return nil, false, nil
	}
	return v.Get(key), true, nil
}

// Set stores a value under key and persists the file.
func (s *Store) Set(script domain.Script, key string, value any) error {
	v, err := s.open(script)
	if err != nil {
		return err
	}
	v.Set(key, value)
	if err := v.WriteConfigAs(s.path(script)); err != nil {
		return fmt.Errorf("failed to write settings for %q: %w", script.Name, err)
	}
	slog.Debug("Saved script setting", "script", script.Name, "key", key)
	return nil
}

// All returns every stored setting for the script.
func (s *Store) All(script domain.Script) (map[string]any, error) {
	v, err := s.open(script)
	if err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// Bool returns the boolean stored under key, or def when unset or unreadable.
func (s *Store) Bool(script domain.Script, key string, def bool) bool {
	v, err := s.open(script)
	if err != nil {
		slog.Warn("Could not read script settings", "script", script.Name, "error", err)
		return def
	}
	if !v.IsSet(key) {
		return def
	}
	return v.GetBool(key)
}

// Import replaces the script's settings file with the contents of another
// JSON file. The source must be valid JSON.
func (s *Store) Import(script domain.Script, sourcePath string) error {
	data, err := afero.ReadFile(s.fs, sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read settings source: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("settings source %s is not valid JSON", sourcePath)
	}
	if err := afero.WriteFile(s.fs, s.path(script), data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings for %q: %w", script.Name, err)
	}
	slog.Info("Imported script settings", "script", script.Name, "source", sourcePath)
	return nil
}

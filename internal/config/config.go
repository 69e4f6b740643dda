package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// ScriptsRoot is the directory holding one folder per script.
	ScriptsRoot string `validate:"required"`
	// BasePython is the interpreter used to create script environments.
	BasePython string `validate:"required"`
	// StopGracePeriod is how long a script gets to exit after a stop
	// request before it is killed.
	StopGracePeriod time.Duration `validate:"min=0"`
	// RepoURL is the optional remote script repository.
	RepoURL string
	// AutoInstallDeps installs missing dependencies without prompting.
	AutoInstallDeps bool
	// AutoUpdateScripts syncs the script repository on startup.
	AutoUpdateScripts bool
}

// DefaultStopGracePeriod applies when SCRIPTHUB_STOP_GRACE is unset.
const DefaultStopGracePeriod = 3 * time.Second

// New loads configuration from environment variables.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		ScriptsRoot:       envOr("SCRIPTHUB_SCRIPTS_ROOT", defaultScriptsRoot()),
		BasePython:        envOr("SCRIPTHUB_PYTHON", "python3"),
		StopGracePeriod:   DefaultStopGracePeriod,
		RepoURL:           os.Getenv("SCRIPTHUB_REPO_URL"),
		AutoInstallDeps:   envBool("SCRIPTHUB_AUTO_INSTALL_DEPS"),
		AutoUpdateScripts: envBool("SCRIPTHUB_AUTO_UPDATE_SCRIPTS"),
	}

	if raw := os.Getenv("SCRIPTHUB_STOP_GRACE"); raw != "" {
		grace, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRIPTHUB_STOP_GRACE %q: %w", raw, err)
		}
		cfg.StopGracePeriod = grace
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultScriptsRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "scripts"
	}
	return filepath.Join(home, "scripts")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-level validator instance.
// Using a single instance is more efficient as it caches struct information.
var validatorInstance = validator.New()

// init registers custom validation functions with the validator instance.
func init() {
	// Script names become directory names under the scripts root, so they
	// must never be able to escape it.
	_ = validatorInstance.RegisterValidation("scriptname", validateScriptName)
}

// validateScriptName ensures the name is a single safe path component.
func validateScriptName(fl validator.FieldLevel) bool {
	name := fl.Field().String()

	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") {
		return false
	}

	return name == filepath.Clean(name)
}

// Script is the registry's view of a single registered script. The Name is
// the ScriptIdentity: every piece of per-script state (environment, manifest,
// settings, logs) is keyed by it.
type Script struct {
	Name         string    `json:"name" validate:"required,min=1,max=128,scriptname"`
	Dir          string    `json:"dir" validate:"required"`   // working directory for execution
	Path         string    `json:"path" validate:"required"`  // absolute-ish path to script.py
	Pinned       bool      `json:"pinned"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Validate runs validation checks on the Script struct using the defined tags.
func (s *Script) Validate() error {
	return validatorInstance.Struct(s)
}

// ValidateScriptName validates a bare script name outside a Script struct,
// for call sites (rename, CLI args) that only have the name.
func ValidateScriptName(name string) error {
	return validatorInstance.Var(name, "required,min=1,max=128,scriptname")
}

// EnvState is the lifecycle state of a script's virtualenv.
type EnvState string

const (
	EnvAbsent   EnvState = "absent"
	EnvCreating EnvState = "creating"
	EnvReady    EnvState = "ready"
	EnvFailed   EnvState = "failed"
)

// SessionState is the lifecycle state of a single script execution.
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionRunning  SessionState = "running"
	SessionStopping SessionState = "stopping"
	SessionFinished SessionState = "finished"
	SessionFailed   SessionState = "failed"
)

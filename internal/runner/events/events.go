// Package events defines the payload types carried on the runner's event
// stream. Every caller-facing notification is one of these structs.
package events

// ProvisioningStarted is published when background environment creation begins.
type ProvisioningStarted struct {
	Script string `json:"script"`
}

// ProvisioningProgress reports coarse environment-creation progress.
type ProvisioningProgress struct {
	Script  string `json:"script"`
	Percent int    `json:"percent"`
}

// ProvisioningFinished is the one-shot completion event for environment
// creation. PythonPath is set only when OK is true.
type ProvisioningFinished struct {
	Script     string `json:"script"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	PythonPath string `json:"python_path,omitempty"`
}

// DependencyCheckResult reports whether a script's manifest is satisfied.
// Missing lists every unmet specifier with installed-vs-required detail.
type DependencyCheckResult struct {
	Script  string   `json:"script"`
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

// InstallStarted is published when a dependency installation begins.
type InstallStarted struct {
	Script string `json:"script"`
}

// InstallProgress reports installation progress: one installer output line
// plus a coarse percentage. Percent is monotonically non-decreasing and
// reaches 100 only on completion.
type InstallProgress struct {
	Script  string `json:"script"`
	Percent int    `json:"percent"`
	Line    string `json:"line,omitempty"`
}

// InstallFinished is the one-shot completion event for an installation.
type InstallFinished struct {
	Script string `json:"script"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// RunStarted signals that the script's child process has been launched.
type RunStarted struct {
	Script    string `json:"script"`
	SessionID string `json:"session_id"`
}

// OutputLine is one line of the running script's stdout, in arrival order.
type OutputLine struct {
	Script string `json:"script"`
	Text   string `json:"text"`
}

// DiagnosticLine is advisory text: captured stderr, stop notices, and
// failure causes. Not necessarily an error.
type DiagnosticLine struct {
	Script string `json:"script"`
	Text   string `json:"text"`
}

// RunFinished is the exactly-once terminal event for a session. It releases
// the single Running slot.
type RunFinished struct {
	Script    string `json:"script"`
	SessionID string `json:"session_id"`
	ExitCode  int    `json:"exit_code"`
	OK        bool   `json:"ok"`
}

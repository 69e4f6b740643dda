// Package topics defines the runner's typed event stream. Each variable
// binds a topic name to its payload type; registration with the topic
// manager happens at init time.
package topics

import (
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/runner/events"
)

var (
	ProvisioningStarted = pubsub.NewEvent[events.ProvisioningStarted](
		"runner.provision.started", "provision",
		"Background environment creation has begun for a script")

	ProvisioningProgress = pubsub.NewEvent[events.ProvisioningProgress](
		"runner.provision.progress", "provision",
		"Coarse percentage progress of environment creation")

	ProvisioningFinished = pubsub.NewEvent[events.ProvisioningFinished](
		"runner.provision.finished", "provision",
		"One-shot completion of environment creation, carrying the interpreter path on success")

	DependencyCheckResult = pubsub.NewEvent[events.DependencyCheckResult](
		"runner.deps.result", "deps",
		"Whether the script's requirement manifest is satisfied, with unmet specifiers")

	InstallStarted = pubsub.NewEvent[events.InstallStarted](
		"runner.install.started", "install",
		"Dependency installation has begun")

	InstallProgress = pubsub.NewEvent[events.InstallProgress](
		"runner.install.progress", "install",
		"Coarse percentage progress of dependency installation")

	InstallFinished = pubsub.NewEvent[events.InstallFinished](
		"runner.install.finished", "install",
		"One-shot completion of dependency installation")

	RunStarted = pubsub.NewEvent[events.RunStarted](
		"runner.run.started", "run",
		"The script's child process has been launched")

	OutputLine = pubsub.NewEvent[events.OutputLine](
		"runner.run.output", "run",
		"One stdout line from the running script, in arrival order")

	DiagnosticLine = pubsub.NewEvent[events.DiagnosticLine](
		"runner.run.diagnostic", "run",
		"Advisory diagnostic text: captured stderr, stop notices, failure causes")

	RunFinished = pubsub.NewEvent[events.RunFinished](
		"runner.run.finished", "run",
		"Exactly-once terminal event for a session; releases the Running slot")
)

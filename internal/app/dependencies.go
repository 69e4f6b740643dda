package app

import (
	"github.com/spf13/afero"

	"github.com/dillspilit/scripthub/internal/command"
	"github.com/dillspilit/scripthub/internal/config"
	"github.com/dillspilit/scripthub/internal/executor"
	"github.com/dillspilit/scripthub/internal/gitsync"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/pydeps"
	"github.com/dillspilit/scripthub/internal/pyenv"
	"github.com/dillspilit/scripthub/internal/registry"
	"github.com/dillspilit/scripthub/internal/runner"
	"github.com/dillspilit/scripthub/internal/settings"
	"github.com/dillspilit/scripthub/internal/topicmgr"
)

// Dependencies holds the core services the application is built from.
// This struct is assembled once at the entrypoint and handed to the CLI.
type Dependencies struct {
	Config      *config.Config
	FS          afero.Fs
	Bus         *pubsub.WatermillBridge
	TopicMgr    *topicmgr.Manager
	Registry    *registry.Registry
	Settings    *settings.Store
	Provisioner *pyenv.Provisioner
	Installer   *pydeps.Installer
	Executor    *executor.Executor
	Controller  *runner.Controller
	Syncer      *gitsync.Syncer
}

// New wires the full service graph over a real filesystem and command runner.
func New(cfg *config.Config) *Dependencies {
	fs := afero.NewOsFs()
	run := command.NewExecRunner()
	bus := pubsub.NewWatermillBridge()

	reg := registry.New(fs, cfg.ScriptsRoot)
	store := settings.NewStore(fs)
	provisioner := pyenv.NewProvisioner(fs, run, bus, cfg.BasePython)
	installer := pydeps.NewInstaller(fs, run, bus)
	exec := executor.New(fs, bus, cfg.StopGracePeriod)
	ctrl := runner.New(fs, bus, bus, provisioner, installer, exec, autoInstall{cfg: cfg, store: store})

	// A script renamed, removed, or edited on disk must not keep a stale
	// environment record, and a run still preparing against that record
	// must end rather than read it after the drop.
	reg.OnChange(func(name string) {
		provisioner.Forget(name)
		ctrl.Invalidate(name)
	})

	return &Dependencies{
		Config:      cfg,
		FS:          fs,
		Bus:         bus,
		TopicMgr:    topicmgr.Default(),
		Registry:    reg,
		Settings:    store,
		Provisioner: provisioner,
		Installer:   installer,
		Executor:    exec,
		Controller:  ctrl,
		Syncer:      gitsync.New(fs, run, cfg.ScriptsRoot, cfg.RepoURL),
	}
}

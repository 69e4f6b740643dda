package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dillspilit/scripthub/internal/app"
	"github.com/dillspilit/scripthub/internal/config"
	"github.com/dillspilit/scripthub/internal/logging"
)

// deps is the wired service graph, assembled before any subcommand runs.
var deps *app.Dependencies

var rootCmd = &cobra.Command{
	Use:   "scripthub",
	Short: "Manage and run Python scripts in isolated environments",
	Long: `ScriptHub keeps a collection of Python scripts, each in its own folder
with its own virtual environment and requirements file. Scripts can be
added, pinned, synced from a git repository, and run with automatic
dependency checking and installation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.New()

		cfg, err := config.New()
		if err != nil {
			return err
		}
		deps = app.New(cfg)
		return deps.Registry.Load()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

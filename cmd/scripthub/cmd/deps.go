package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/pydeps"
	"github.com/dillspilit/scripthub/internal/pyenv"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect and install script dependencies",
}

var depsCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Check the requirements file against the environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Get(args[0])
		if err != nil {
			return err
		}
		env, err := ensureEnvironment(cmd.Context(), script)
		if err != nil {
			return err
		}

		manifest, err := pydeps.LoadManifest(deps.FS, script.Dir)
		if err != nil {
			return err
		}
		ok, missing, err := pydeps.Check(cmd.Context(), manifest, env.Index())
		if err != nil {
			return err
		}
		if ok {
			fmt.Println(okStyle.Render("All dependencies satisfied."))
			return nil
		}
		fmt.Println(headerStyle.Render("Missing dependencies:"))
		for _, m := range missing {
			fmt.Println("  " + m)
		}
		return nil
	},
}

var depsInstallCmd = &cobra.Command{
	Use:   "install <name>",
	Short: "Install the script's requirements into its environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Get(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := ensureEnvironment(ctx, script)
		if err != nil {
			return err
		}

		done := make(chan events.InstallFinished, 1)
		if err := deps.Bus.Subscribe(ctx, topics.InstallFinished.Name(),
			func(_ context.Context, msg pubsub.Message) error {
				if msg.Script != script.Name {
					return nil
				}
				if p, err := pubsub.Decode(topics.InstallFinished, msg); err == nil {
					select {
					case done <- p:
					default:
					}
				}
				return nil
			}); err != nil {
			return err
		}
		if err := deps.Bus.Subscribe(ctx, topics.InstallProgress.Name(),
			func(_ context.Context, msg pubsub.Message) error {
				if msg.Script != script.Name {
					return nil
				}
				if p, err := pubsub.Decode(topics.InstallProgress, msg); err == nil && p.Line != "" {
					fmt.Println(progressStyle.Render(fmt.Sprintf("[%3d%%] %s", p.Percent, p.Line)))
				}
				return nil
			}); err != nil {
			return err
		}

		if err := deps.Installer.Install(ctx, script.Name, env.Python(), script.Dir, env.Index()); err != nil {
			return err
		}

		select {
		case p := <-done:
			if !p.OK {
				return fmt.Errorf("installation failed: %s", p.Detail)
			}
			fmt.Println(okStyle.Render("Dependencies installed."))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

func init() {
	depsCmd.AddCommand(depsCheckCmd, depsInstallCmd)
	rootCmd.AddCommand(depsCmd)
}

// ensureEnvironment returns the script's environment, waiting for background
// creation when it does not exist yet.
func ensureEnvironment(ctx context.Context, script domain.Script) (*pyenv.Environment, error) {
	done := make(chan events.ProvisioningFinished, 1)
	if err := deps.Bus.Subscribe(ctx, topics.ProvisioningFinished.Name(),
		func(_ context.Context, msg pubsub.Message) error {
			if msg.Script != script.Name {
				return nil
			}
			if p, err := pubsub.Decode(topics.ProvisioningFinished, msg); err == nil {
				select {
				case done <- p:
				default:
				}
			}
			return nil
		}); err != nil {
		return nil, err
	}

	ready, err := deps.Provisioner.EnsureReady(ctx, script)
	if err != nil {
		return nil, err
	}
	if ready.Ready {
		return ready.Env, nil
	}

	fmt.Println(headerStyle.Render("Preparing environment..."))
	select {
	case p := <-done:
		if !p.OK {
			return nil, fmt.Errorf("environment creation failed: %s", p.Detail)
		}
		return deps.Provisioner.Environment(script), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

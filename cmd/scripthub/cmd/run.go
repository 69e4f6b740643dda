package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dillspilit/scripthub/internal/domain"
	"github.com/dillspilit/scripthub/internal/pubsub"
	"github.com/dillspilit/scripthub/internal/runner/events"
	"github.com/dillspilit/scripthub/internal/runner/topics"
)

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a script, preparing its environment first",
	Long: `Runs a script in its virtual environment. The environment is created on
first use, the requirements file is checked against the installed
packages, and you are asked before anything missing is installed.
Press Ctrl-C to stop the running script.`,
	Args: cobra.ExactArgs(1),
	RunE: runHandler,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running script",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := deps.Controller.Stop(cmd.Context())
		if errors.Is(err, domain.ErrNotRunning) {
			fmt.Println("No script is running.")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd, stopCmd)
}

func runHandler(cmd *cobra.Command, args []string) error {
	if deps.Config.AutoUpdateScripts {
		if _, err := deps.Syncer.Sync(cmd.Context()); err != nil {
			fmt.Fprintln(os.Stderr, diagnosticStyle.Render("sync failed: "+err.Error()))
		} else if err := deps.Registry.Load(); err != nil {
			return err
		}
	}

	script, err := deps.Registry.Get(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	finished := make(chan events.RunFinished, 1)
	if err := subscribeStream(ctx, script.Name, finished); err != nil {
		return err
	}
	if err := deps.Controller.Start(ctx); err != nil {
		return err
	}

	header := fmt.Sprintf("=== run %s at %s", script.Name, time.Now().Format(time.RFC3339))
	if err := deps.Registry.AppendLog(script.Name, header); err != nil {
		return err
	}

	if err := deps.Controller.Run(ctx, script, promptInstall); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case f := <-finished:
			if !f.OK {
				return fmt.Errorf("%s exited with status %d", script.Name, f.ExitCode)
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("%s finished", script.Name)))
			return nil
		case <-sigs:
			fmt.Println(diagnosticStyle.Render("stopping..."))
			if err := deps.Controller.Stop(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			if deps.Controller.Active() != "" {
				continue
			}
			// The request ended without launching; give a trailing
			// terminal event a moment to arrive.
			select {
			case f := <-finished:
				if !f.OK {
					return fmt.Errorf("%s exited with status %d", script.Name, f.ExitCode)
				}
				fmt.Println(okStyle.Render(fmt.Sprintf("%s finished", script.Name)))
				return nil
			case <-time.After(500 * time.Millisecond):
				return fmt.Errorf("%s did not run", script.Name)
			}
		}
	}
}

// subscribeStream prints the run's event stream and mirrors script output
// into the per-script log.
func subscribeStream(ctx context.Context, script string, finished chan<- events.RunFinished) error {
	type sub struct {
		topic   string
		handler pubsub.Handler
	}

	forScript := func(fn func(pubsub.Message)) pubsub.Handler {
		return func(_ context.Context, msg pubsub.Message) error {
			if msg.Script == script {
				fn(msg)
			}
			return nil
		}
	}

	subs := []sub{
		{topics.ProvisioningStarted.Name(), forScript(func(pubsub.Message) {
			fmt.Println(headerStyle.Render("Preparing environment..."))
		})},
		{topics.ProvisioningProgress.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.ProvisioningProgress, msg); err == nil {
				fmt.Println(progressStyle.Render(fmt.Sprintf("[%3d%%] environment", p.Percent)))
			}
		})},
		{topics.DependencyCheckResult.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.DependencyCheckResult, msg); err == nil && p.OK {
				fmt.Println(progressStyle.Render("dependencies satisfied"))
			}
		})},
		{topics.InstallStarted.Name(), forScript(func(pubsub.Message) {
			fmt.Println(headerStyle.Render("Installing dependencies..."))
		})},
		{topics.InstallProgress.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.InstallProgress, msg); err == nil {
				line := strings.TrimSpace(p.Line)
				if line == "" {
					line = "install"
				}
				fmt.Println(progressStyle.Render(fmt.Sprintf("[%3d%%] %s", p.Percent, line)))
			}
		})},
		{topics.RunStarted.Name(), forScript(func(pubsub.Message) {
			fmt.Println(headerStyle.Render("Running " + script))
		})},
		{topics.OutputLine.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.OutputLine, msg); err == nil {
				fmt.Println(p.Text)
				_ = deps.Registry.AppendLog(script, p.Text)
			}
		})},
		{topics.DiagnosticLine.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.DiagnosticLine, msg); err == nil {
				fmt.Fprintln(os.Stderr, diagnosticStyle.Render(p.Text))
				_ = deps.Registry.AppendLog(script, p.Text)
			}
		})},
		{topics.RunFinished.Name(), forScript(func(msg pubsub.Message) {
			if p, err := pubsub.Decode(topics.RunFinished, msg); err == nil {
				select {
				case finished <- p:
				default:
				}
			}
		})},
	}

	for _, s := range subs {
		if err := deps.Bus.Subscribe(ctx, s.topic, s.handler); err != nil {
			return err
		}
	}
	return nil
}

// promptInstall asks on the terminal whether missing dependencies should be
// installed.
func promptInstall(missing []string) bool {
	fmt.Println(headerStyle.Render("Missing dependencies:"))
	for _, m := range missing {
		fmt.Println("  " + m)
	}
	fmt.Print("Install now? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

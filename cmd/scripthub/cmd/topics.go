package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dillspilit/scripthub/internal/topicmgr"

	// Register the runner's event topics.
	_ "github.com/dillspilit/scripthub/internal/runner/topics"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the event topics published on the internal bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOPIC\tSTAGE\tDESCRIPTION")
		for _, t := range topicmgr.Default().List() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Stage, t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update scripts from the configured git repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		changed, err := deps.Syncer.Sync(cmd.Context())
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			fmt.Println("Everything up to date.")
			return nil
		}
		for _, name := range changed {
			fmt.Println(okStyle.Render("updated ") + name)
		}
		return deps.Registry.Load()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scripts, pinned ones first",
	Run: func(cmd *cobra.Command, args []string) {
		scripts := deps.Registry.List()
		if len(scripts) == 0 {
			fmt.Println("No scripts found.")
			return
		}
		for _, s := range scripts {
			if s.Pinned {
				fmt.Println(pinnedStyle.Render("* " + s.Name))
			} else {
				fmt.Println("  " + s.Name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

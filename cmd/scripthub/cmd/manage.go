package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <name> <source.py>",
	Short: "Import a Python file as a new script",
	Long: `Copies the source file into the script collection, scans it for
imported packages, and generates a requirements file for any that are
not part of the standard library.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Add(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", script.Name, script.Path)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a script",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deps.Registry.Rename(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a script and its environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deps.Registry.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var unpin bool

var pinCmd = &cobra.Command{
	Use:   "pin <name>",
	Short: "Pin a script to the top of the listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := deps.Registry.SetPinned(args[0], !unpin); err != nil {
			return err
		}
		if unpin {
			fmt.Printf("Unpinned %s\n", args[0])
		} else {
			fmt.Printf("Pinned %s\n", args[0])
		}
		return nil
	},
}

func init() {
	pinCmd.Flags().BoolVar(&unpin, "unpin", false, "remove the pin instead")
	rootCmd.AddCommand(addCmd, renameCmd, removeCmd, pinCmd)
}

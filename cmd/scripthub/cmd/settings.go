package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write per-script settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <script> [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Get(args[0])
		if err != nil {
			return err
		}

		if len(args) == 2 {
			value, ok, err := deps.Settings.Get(script, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("setting %q is not set for %s", args[1], script.Name)
			}
			fmt.Printf("%v\n", value)
			return nil
		}

		all, err := deps.Settings.All(script)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %v\n", k, all[k])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <script> <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Get(args[0])
		if err != nil {
			return err
		}
		return deps.Settings.Set(script, args[1], args[2])
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <script> <file.json>",
	Short: "Replace a script's settings with a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := deps.Registry.Get(args[0])
		if err != nil {
			return err
		}
		return deps.Settings.Import(script, args[1])
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}

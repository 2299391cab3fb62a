package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Remove a dependency from the manifest",
	Long: `Remove a skill dependency by alias.

The manifest is updated immediately; installed skills are removed on the
next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := args[0]

		m, err := manifestForEditing(cmd)
		if err != nil {
			return err
		}
		if _, exists := m.Dependencies[alias]; !exists {
			return fmt.Errorf("dependency %q not declared in %s", alias, m.Origin.Path)
		}

		if err := writeManifest(m.WithoutDependency(alias)); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Removed %s from %s\n", alias, m.Origin.Path)
		fmt.Fprintln(os.Stdout, "Run skilldeck sync to uninstall.")
		return nil
	},
}

func init() {
	removeCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	removeCmd.Flags().BoolP("global", "g", false, "Edit the global manifest")
	rootCmd.AddCommand(removeCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skilldeck/internal/core"
)

var addCmd = &cobra.Command{
	Use:   "add <alias> <source>",
	Short: "Add a dependency to the manifest",
	Long: `Add a skill dependency under the given alias.

Sources by shape:
  owner/repo                   GitHub repository
  https://... or git@...       any git remote
  ./dir, ../dir, /dir, ~/dir   local directory (installed as symlink)
  name@version                 registry package
  claude-plugin:plugin@owner/repo
                               plugin from a Claude marketplace repository

Pin a revision with --tag, --branch, or --rev, and narrow a git source to a
repository subdirectory with --path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, source := args[0], args[1]
		if !core.ValidAlias(alias) {
			return fmt.Errorf("invalid alias %q: use letters, digits, and - _ .", alias)
		}

		m, err := manifestForEditing(cmd)
		if err != nil {
			return err
		}
		if _, exists := m.Dependencies[alias]; exists {
			return fmt.Errorf("dependency %q already declared in %s", alias, m.Origin.Path)
		}

		tag, _ := cmd.Flags().GetString("tag")
		branch, _ := cmd.Flags().GetString("branch")
		rev, _ := cmd.Flags().GetString("rev")
		subpath, _ := cmd.Flags().GetString("path")

		decl, err := core.DeclarationFromSource(alias, source, tag, branch, rev, subpath)
		if err != nil {
			return err
		}

		if err := writeManifest(m.WithDependency(alias, decl)); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Added %s to %s\n", alias, m.Origin.Path)
		fmt.Fprintln(os.Stdout, "Run skilldeck sync to install.")
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	addCmd.Flags().BoolP("global", "g", false, "Edit the global manifest")
	addCmd.Flags().String("tag", "", "Pin to a tag")
	addCmd.Flags().String("branch", "", "Track a branch")
	addCmd.Flags().String("rev", "", "Pin to a commit")
	addCmd.Flags().String("path", "", "Repository subdirectory to install from")
	rootCmd.AddCommand(addCmd)
}

package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"skilldeck/internal/agent"
	"skilldeck/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show declared dependencies and installed skills",
	Long: `Show the manifests in effect for the target folder, the dependencies they
declare, and what skilldeck currently manages in each agent's skills
directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveTargetDir(cmd)
		if err != nil {
			return err
		}
		home, err := resolveHome()
		if err != nil {
			return err
		}

		manifests, err := core.DiscoverManifests(dir, home)
		if err != nil {
			return err
		}
		if len(manifests) == 0 {
			fmt.Fprintf(os.Stdout, "No %s found for %s.\n", core.ManifestFileName, dir)
			fmt.Fprintln(os.Stdout, "Run skilldeck init to create one.")
			return nil
		}

		for _, m := range manifests {
			fmt.Fprintf(os.Stdout, "Manifest: %s [%s]\n", m.Origin.Path, m.Origin.Mode)
		}

		merged, err := core.MergeManifests(manifests)
		if err != nil {
			return err
		}

		if len(merged.Dependencies) == 0 {
			fmt.Fprintln(os.Stdout, "  Dependencies: none")
		} else {
			aliases := make([]string, 0, len(merged.Dependencies))
			for alias := range merged.Dependencies {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)
			fmt.Fprintf(os.Stdout, "  Dependencies (%d):\n", len(merged.Dependencies))
			for _, alias := range aliases {
				pkg := core.ResolvePackage(alias, merged.Dependencies[alias], merged.DependencySource(alias))
				fmt.Fprintf(os.Stdout, "    - %-16s %s\n", alias, describePackage(pkg))
			}
		}

		fmt.Fprintln(os.Stdout)
		for _, id := range agent.IDs() {
			d, _ := agent.ByID(id)
			res := d.Resolve(agent.ScopeProject, dir, home)
			state, err := core.ReadState(res.Root)
			if err != nil {
				fmt.Fprintf(os.Stdout, "  %-16s state unreadable: %v\n", d.ID+":", err)
				continue
			}
			if state == nil {
				continue
			}
			fmt.Fprintf(os.Stdout, "  %-16s %d managed skill(s)\n", d.ID+":", len(state.Skills))
			for _, name := range state.Skills {
				fmt.Fprintf(os.Stdout, "    - %s\n", name)
			}
		}
		return nil
	},
}

// describePackage renders a one-line summary of a resolved dependency.
func describePackage(pkg core.CanonicalPackage) string {
	switch pkg.Kind {
	case core.KindLocal:
		return pkg.LocalDir
	case core.KindRegistry:
		return pkg.Name + "@" + pkg.Version
	case core.KindClaudePlugin:
		return fmt.Sprintf("%s (plugin %s, %s)", pkg.RepoID, pkg.Plugin, pkg.Ref)
	default:
		s := fmt.Sprintf("%s (%s)", pkg.RepoID, pkg.Ref)
		if pkg.Path != "" {
			s += " /" + pkg.Path
		}
		return s
	}
}

func init() {
	statusCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	rootCmd.AddCommand(statusCmd)
}

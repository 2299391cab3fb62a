package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skilldeck/internal/agent"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List supported agents",
	Long: `List all supported AI coding agents, whether each appears installed on
this machine, and whether it is active in the target folder.`,
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

		for _, id := range agent.IDs() {
			d, _ := agent.ByID(id)
			markers := ""
			if d.IsInstalled(home) {
				markers += " [installed]"
			}
			if d.IsActiveInFolder(dir) {
				markers += " [active here]"
			}
			fmt.Fprintf(os.Stdout, "  %-16s %s%s\n", d.ID, d.DisplayName, markers)
			fmt.Fprintf(os.Stdout, "  %-16s skills: %s\n", "", d.Resolve(agent.ScopeProject, dir, home).SkillsDir)
		}
		return nil
	},
}

func init() {
	agentsCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	rootCmd.AddCommand(agentsCmd)
}

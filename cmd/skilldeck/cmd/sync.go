package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skilldeck/internal/core"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install everything the manifest declares",
	Long: `Resolve, fetch, and install all declared skill dependencies into every
enabled agent's skills directory, and remove previously installed skills
that are no longer declared.

Only skills recorded in skilldeck's own install state are ever removed;
anything else found in an agent's skills directory is left alone, and a
name collision with an unmanaged entry aborts before any change is made.`,
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

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		global, _ := cmd.Flags().GetBool("global")
		lenient, _ := cmd.Flags().GetBool("lenient")

		report, err := core.Sync(core.SyncOptions{
			Dir:     dir,
			Home:    home,
			Global:  global,
			DryRun:  dryRun,
			Lenient: lenient,
			Agents:  resolveAgentsFlag(cmd),
		})
		if err != nil {
			if report != nil {
				printWarnings(report.Warnings)
			}
			return err
		}

		printWarnings(report.Warnings)

		verb := "synced"
		if dryRun {
			verb = "would sync"
		}
		skillCount := 0
		for _, pkg := range report.Packages {
			skillCount += len(pkg.Skills)
		}
		fmt.Fprintf(os.Stdout, "%d package(s), %d skill(s) %s\n", len(report.Packages), skillCount, verb)
		for _, ar := range report.Agents {
			fmt.Fprintf(os.Stdout, "  %-16s %d installed, %d removed\n", ar.Agent+":", ar.Installed, ar.Removed)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	syncCmd.Flags().BoolP("global", "g", false, "Sync the global manifest into global agent directories")
	syncCmd.Flags().Bool("dry-run", false, "Show what would be done without making changes")
	syncCmd.Flags().Bool("lenient", false, "Skip broken packages with a warning instead of failing")
	syncCmd.Flags().String("agents", "", "Comma-separated agent ids to target (e.g. cursor,claude-code)")
	rootCmd.AddCommand(syncCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"skilldeck/internal/agent"
	"skilldeck/internal/core"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter skills.toml",
	Long: `Write a starter skills.toml into the target directory.

Agents detected in the folder are pre-enabled in the [agents] section.
Refuses to overwrite an existing manifest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveTargetDir(cmd)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, core.ManifestFileName)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		m := &core.Manifest{
			Agents:       map[string]bool{},
			Dependencies: map[string]core.Declaration{},
			Origin:       core.ManifestOrigin{Mode: core.DiscoveryLocal, Path: path},
		}
		for _, d := range agent.DetectInFolder(dir) {
			m.Agents[d.ID] = true
		}

		if err := core.WriteManifest(m, path, core.WriteOptions{KeepEmptySections: true}); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Created %s\n", path)
		if len(m.Agents) > 0 {
			for _, id := range agent.IDs() {
				if m.Agents[id] {
					fmt.Fprintf(os.Stdout, "  enabled agent: %s\n", id)
				}
			}
		} else {
			fmt.Fprintln(os.Stdout, "No agents detected; enable them in [agents] or pass --agents to sync.")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("dir", "d", "", "Target directory (default: current directory)")
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"skilldeck/internal/core"
)

// resolveTargetDir resolves the --dir flag or falls back to cwd.
func resolveTargetDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}

// resolveHome returns the home directory, honoring HOME for test harnesses.
func resolveHome() (string, error) {
	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}
	return os.UserHomeDir()
}

// manifestForEditing loads the manifest a mutating command targets: the
// global manifest under --global, otherwise the project manifest in the
// target directory itself (editing never walks up to parents).
func manifestForEditing(cmd *cobra.Command) (*core.Manifest, error) {
	global, _ := cmd.Flags().GetBool("global")

	if global {
		home, err := resolveHome()
		if err != nil {
			return nil, err
		}
		path := core.GlobalManifestPath(home)
		m, err := core.LoadManifest(path, core.DiscoveryGlobal)
		if err == nil {
			return m, nil
		}
		if core.IsClass(err, core.ClassNotFound) {
			// The global manifest is created on demand.
			return &core.Manifest{
				Agents:       map[string]bool{},
				Dependencies: map[string]core.Declaration{},
				Origin:       core.ManifestOrigin{Mode: core.DiscoveryGlobal, Path: path},
			}, nil
		}
		return nil, err
	}

	dir, err := resolveTargetDir(cmd)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, core.ManifestFileName)
	m, err := core.LoadManifest(path, core.DiscoveryLocal)
	if err != nil {
		if core.IsClass(err, core.ClassNotFound) {
			return nil, fmt.Errorf("no %s in %s (run: skilldeck init)", core.ManifestFileName, dir)
		}
		return nil, err
	}
	return m, nil
}

// writeManifest persists an edited manifest, creating the global directory
// when needed.
func writeManifest(m *core.Manifest) error {
	if m.Origin.Mode == core.DiscoveryGlobal {
		if err := os.MkdirAll(filepath.Dir(m.Origin.Path), 0o755); err != nil {
			return fmt.Errorf("creating global directory: %w", err)
		}
	}
	return core.WriteManifest(m, m.Origin.Path, core.WriteOptions{})
}

// resolveAgentsFlag parses the comma-separated --agents flag into ids.
// Returns nil (meaning "use the manifest selection") if the flag is empty.
func resolveAgentsFlag(cmd *cobra.Command) []string {
	flag, _ := cmd.Flags().GetString("agents")
	if flag == "" {
		return nil
	}
	ids := strings.Split(flag, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}
	return ids
}

// printWarnings writes accumulated pipeline warnings to stderr.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

// Package agent defines the AI coding agents skilldeck can install skills for.
//
// Each agent is a self-contained definition that knows its own directory
// conventions and detection signals. The sync pipeline never hard-codes agent
// paths; it only consumes Resolved values produced here.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tailscale/hujson"
)

// Def describes one AI coding agent and its skill directory conventions.
type Def struct {
	ID            string   // machine name: "claude-code", "cursor"
	DisplayName   string   // human name: "Claude Code", "Cursor"
	Dir           string   // project-relative agent root (e.g. ".claude")
	SkillsSubdir  string   // skills directory inside the root (e.g. "skills")
	GlobalDir     string   // global agent root (e.g. "~/.claude", "$XDG_CONFIG/opencode")
	DetectPaths   []string // global paths indicating the agent is installed
	ConfigSignals []string // project files/dirs indicating active use
}

// Scope selects where an agent's directories are rooted.
type Scope int

const (
	ScopeProject Scope = iota // rooted at the project directory
	ScopeGlobal               // rooted at the agent's global directory
)

// Resolved binds a Def to concrete paths under a given scope.
type Resolved struct {
	Def       Def
	Root      string // agent root directory (holds the install-state file)
	SkillsDir string // directory skills are installed into
}

// Resolve binds the definition to concrete paths. projectDir is used for
// ScopeProject; home replaces "~" when expanding the global root.
func (d Def) Resolve(scope Scope, projectDir, home string) Resolved {
	var root string
	switch scope {
	case ScopeGlobal:
		root = expand(d.GlobalDir, home)
	default:
		root = filepath.Join(projectDir, d.Dir)
	}
	return Resolved{
		Def:       d,
		Root:      root,
		SkillsDir: filepath.Join(root, d.SkillsSubdir),
	}
}

// IsActiveInFolder reports whether the agent's config artifacts are present in
// the given project folder. JSON/JSONC signals only count when they parse,
// so a leftover broken config file does not trigger installs.
func (d Def) IsActiveInFolder(dir string) bool {
	for _, signal := range d.ConfigSignals {
		p := filepath.Join(dir, signal)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return true
		}
		if strings.HasSuffix(signal, ".json") || strings.HasSuffix(signal, ".jsonc") {
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			if _, err := hujson.Parse(data); err != nil {
				continue
			}
		}
		return true
	}
	return false
}

// IsInstalled reports whether the agent appears to be installed globally.
func (d Def) IsInstalled(home string) bool {
	for _, p := range d.DetectPaths {
		if _, err := os.Stat(expand(p, home)); err == nil {
			return true
		}
	}
	return false
}

// --- Registry ---

var defs []Def

// Register adds an agent definition to the global registry.
func Register(d Def) { defs = append(defs, d) }

// All returns all registered agent definitions.
func All() []Def { return defs }

// ByID returns the agent definition with the given id, if registered.
func ByID(id string) (Def, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return Def{}, false
}

// ByIDs resolves a list of agent ids to definitions.
// Returns an error naming the valid ids if any id is unknown.
func ByIDs(ids []string) ([]Def, error) {
	result := make([]Def, 0, len(ids))
	for _, id := range ids {
		d, ok := ByID(id)
		if !ok {
			return nil, fmt.Errorf("unknown agent %q; available: %s",
				id, strings.Join(IDs(), ", "))
		}
		result = append(result, d)
	}
	return result, nil
}

// IDs returns the machine names of all registered agents, sorted.
func IDs() []string {
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	sort.Strings(ids)
	return ids
}

// DetectInFolder returns agents whose config artifacts exist in the folder.
func DetectInFolder(dir string) []Def {
	var detected []Def
	for _, d := range defs {
		if d.IsActiveInFolder(dir) {
			detected = append(detected, d)
		}
	}
	return detected
}

// expand expands a leading ~ to home and $VAR / $XDG_CONFIG to env values.
func expand(p, home string) string {
	if strings.Contains(p, "$XDG_CONFIG") {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		p = strings.ReplaceAll(p, "$XDG_CONFIG", xdgConfig)
	}

	if strings.Contains(p, "$") {
		p = os.Expand(p, func(key string) string {
			if key == "XDG_CONFIG" {
				return ""
			}
			return os.Getenv(key)
		})
	}

	if strings.HasPrefix(p, "~/") {
		p = filepath.Join(home, p[2:])
	} else if p == "~" {
		p = home
	}

	return p
}

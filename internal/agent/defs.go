package agent

func init() {
	Register(Def{
		ID:            "claude-code",
		DisplayName:   "Claude Code",
		Dir:           ".claude",
		SkillsSubdir:  "skills",
		GlobalDir:     "~/.claude",
		DetectPaths:   []string{"~/.claude"},
		ConfigSignals: []string{"CLAUDE.md", ".claude", ".mcp.json"},
	})

	Register(Def{
		ID:            "cursor",
		DisplayName:   "Cursor",
		Dir:           ".cursor",
		SkillsSubdir:  "skills",
		GlobalDir:     "~/.cursor",
		DetectPaths:   []string{"~/.cursor"},
		ConfigSignals: []string{".cursor"},
	})

	Register(Def{
		ID:            "codex",
		DisplayName:   "Codex",
		Dir:           ".codex",
		SkillsSubdir:  "skills",
		GlobalDir:     "~/.codex",
		DetectPaths:   []string{"~/.codex", "/etc/codex"},
		ConfigSignals: []string{"AGENTS.md", ".codex"},
	})

	Register(Def{
		ID:            "gemini-cli",
		DisplayName:   "Gemini CLI",
		Dir:           ".gemini",
		SkillsSubdir:  "skills",
		GlobalDir:     "~/.gemini",
		DetectPaths:   []string{"~/.gemini"},
		ConfigSignals: []string{"GEMINI.md", ".gemini"},
	})

	Register(Def{
		ID:            "opencode",
		DisplayName:   "OpenCode",
		Dir:           ".opencode",
		SkillsSubdir:  "skills",
		GlobalDir:     "$XDG_CONFIG/opencode",
		DetectPaths:   []string{"$XDG_CONFIG/opencode"},
		ConfigSignals: []string{"opencode.json", "opencode.jsonc"},
	})

	Register(Def{
		ID:            "github-copilot",
		DisplayName:   "GitHub Copilot",
		Dir:           ".github",
		SkillsSubdir:  "skills",
		GlobalDir:     "~/.copilot",
		DetectPaths:   []string{"~/.copilot"},
		ConfigSignals: []string{".github/copilot-instructions.md"},
	})
}

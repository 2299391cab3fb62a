package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillFileName is the skill-definition file looked for in skill directories.
const SkillFileName = "SKILL.md"

// SkillMeta is the YAML frontmatter parsed from a SKILL.md file.
type SkillMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseSkillFile reads and parses the YAML frontmatter from a SKILL.md file.
// The name field is required; everything after the closing --- is ignored.
func parseSkillFile(path string) (*SkillMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)

	// Look for opening ---
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file: %s", path)
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("no frontmatter in %s", path)
	}

	// Collect frontmatter lines until closing ---
	var frontmatter strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}
		frontmatter.WriteString(line)
		frontmatter.WriteString("\n")
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var meta SkillMeta
	if err := yaml.Unmarshal([]byte(frontmatter.String()), &meta); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}

	if meta.Name == "" {
		return nil, fmt.Errorf("SKILL.md missing name field: %s", path)
	}

	return &meta, nil
}

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DetectMethod classifies how a fetched package lays out its skills.
type DetectMethod string

const (
	DetectManifest DetectMethod = "manifest" // package carries its own skills.toml
	DetectPlugin   DetectMethod = "plugin"   // .claude-plugin marker directory
	DetectSubdir   DetectMethod = "subdir"   // immediate subdirectories are skills
	DetectSingle   DetectMethod = "single"   // the package root is one skill
)

// ExtractMode selects how extraction treats recoverable problems.
type ExtractMode int

const (
	// ModeStrict fails the sync on any unparseable or duplicate skill.
	ModeStrict ExtractMode = iota
	// ModeLenient downgrades per-skill problems to warnings.
	ModeLenient
)

// Skill is one extracted unit of agent instruction material.
type Skill struct {
	Name        string
	Description string
	RelPath     string // skill directory relative to the package root, "/"-separated
}

// DetectedPackage is a fetched package with its classified layout and skills.
type DetectedPackage struct {
	Pkg    CanonicalPackage
	Method DetectMethod
	Root   string // directory the skill RelPaths are relative to
	Skills []Skill
}

const (
	pluginMarkerDir     = ".claude-plugin"
	marketplaceFileName = "marketplace.json"
	pluginSkillsSubdir  = "skills"
)

// marketplaceManifest mirrors .claude-plugin/marketplace.json.
type marketplaceManifest struct {
	Name    string             `json:"name"`
	Plugins []marketplaceEntry `json:"plugins"`
}

type marketplaceEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// DetectAndExtract classifies a fetched package into exactly one layout
// method and extracts its skills. In lenient mode, per-skill problems become
// warnings instead of aborting the package.
func DetectAndExtract(fp FetchedPackage, mode ExtractMode) (*DetectedPackage, []string, error) {
	root := fp.PackagePath
	detected := &DetectedPackage{Pkg: fp.Pkg, Root: root}

	switch {
	case fileExists(filepath.Join(root, ManifestFileName)):
		detected.Method = DetectManifest
		skills, warnings, err := extractManifestSkills(fp, root, mode)
		if err != nil {
			return nil, warnings, err
		}
		detected.Skills = skills
		return detected, warnings, nil

	case dirExists(filepath.Join(root, pluginMarkerDir)) || fp.Pkg.Kind == KindClaudePlugin:
		detected.Method = DetectPlugin
		skills, warnings, err := extractPluginSkills(fp, root, mode)
		if err != nil {
			return nil, warnings, err
		}
		detected.Skills = skills
		return detected, warnings, nil

	case hasSkillSubdirs(root):
		detected.Method = DetectSubdir
		skills, warnings, err := extractSkillDirs(root, root, mode)
		if err != nil {
			return nil, warnings, err
		}
		detected.Skills = skills
		return detected, warnings, nil

	case fileExists(filepath.Join(root, SkillFileName)):
		detected.Method = DetectSingle
		meta, err := parseSkillFile(filepath.Join(root, SkillFileName))
		if err != nil {
			if mode == ModeLenient {
				return detected, []string{fmt.Sprintf("%s: %v", root, err)}, nil
			}
			return nil, nil, E(StageExtract, ClassParse, err).WithOrigin(fp.Pkg.Origin)
		}
		detected.Skills = []Skill{{Name: meta.Name, Description: meta.Description, RelPath: "."}}
		return detected, nil, nil

	default:
		err := Ef(StageDetect, ClassValidation,
			"unrecognized package layout: no %s, %s marker, or %s",
			ManifestFileName, pluginMarkerDir, SkillFileName).WithOrigin(fp.Pkg.Origin).WithPath(root)
		if mode == ModeLenient {
			return detected, []string{err.Error()}, nil
		}
		return nil, nil, err
	}
}

// extractManifestSkills reads the package's own skills.toml and takes skill
// roots from its auto-discovery export (default ./skills, or none when the
// export is explicitly disabled).
func extractManifestSkills(fp FetchedPackage, root string, mode ExtractMode) ([]Skill, []string, error) {
	sub, err := LoadManifest(filepath.Join(root, ManifestFileName), DiscoveryLocal)
	if err != nil {
		if mode == ModeLenient {
			return nil, []string{fmt.Sprintf("%s: %v", root, err)}, nil
		}
		// Attribute the broken package manifest to the dependency that
		// pulled it in.
		var e *Error
		if errors.As(err, &e) && e.Origin == nil {
			e.WithOrigin(fp.Pkg.Origin)
		}
		return nil, nil, err
	}

	skillsDir := defaultSkillsExport
	if sub.Exports != nil {
		if sub.Exports.Disabled {
			return nil, nil, nil
		}
		if sub.Exports.SkillsDir != "" {
			skillsDir = sub.Exports.SkillsDir
		}
	}

	dir := filepath.Join(root, filepath.FromSlash(skillsDir))
	if !dirExists(dir) {
		return nil, nil, nil
	}
	return extractSkillDirs(dir, root, mode)
}

// extractPluginSkills resolves the plugin root (via the marketplace manifest
// for claude-plugin packages) and extracts from its skills/ subdirectory.
// A missing skills directory is tolerated as zero skills.
func extractPluginSkills(fp FetchedPackage, root string, mode ExtractMode) ([]Skill, []string, error) {
	pluginRoot := root

	if fp.Pkg.Kind == KindClaudePlugin {
		marketPath := filepath.Join(fp.RepoPath, pluginMarkerDir, marketplaceFileName)
		data, err := os.ReadFile(marketPath)
		if err != nil {
			return nil, nil, Ef(StageDetect, ClassNotFound,
				"marketplace manifest not found: %v", err).WithOrigin(fp.Pkg.Origin).WithPath(marketPath)
		}

		var market marketplaceManifest
		if err := json.Unmarshal(data, &market); err != nil {
			return nil, nil, Ef(StageDetect, ClassParse,
				"parsing marketplace manifest: %v", err).WithOrigin(fp.Pkg.Origin).WithPath(marketPath)
		}

		var entry *marketplaceEntry
		for i := range market.Plugins {
			if market.Plugins[i].Name == fp.Pkg.Plugin {
				entry = &market.Plugins[i]
				break
			}
		}
		if entry == nil {
			return nil, nil, Ef(StageDetect, ClassNotFound,
				"plugin %q not listed in marketplace %q", fp.Pkg.Plugin, market.Name).
				WithOrigin(fp.Pkg.Origin).WithPath(marketPath)
		}

		source, err := validateSubpath(entry.Source)
		if err != nil {
			return nil, nil, E(StageDetect, ClassValidation, err).WithOrigin(fp.Pkg.Origin)
		}
		pluginRoot = filepath.Join(fp.RepoPath, filepath.FromSlash(source))
		if !dirExists(pluginRoot) {
			return nil, nil, Ef(StageDetect, ClassNotFound,
				"plugin source %q does not exist", entry.Source).WithOrigin(fp.Pkg.Origin)
		}
	}

	skillsDir := filepath.Join(pluginRoot, pluginSkillsSubdir)
	if !dirExists(skillsDir) {
		return nil, nil, nil
	}
	return extractSkillDirs(skillsDir, root, mode)
}

// hasSkillSubdirs reports whether any immediate subdirectory carries a
// skill-definition file.
func hasSkillSubdirs(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if fileExists(filepath.Join(root, entry.Name(), SkillFileName)) {
			return true
		}
	}
	return false
}

// extractSkillDirs reads every immediate subdirectory of dir that carries a
// SKILL.md. RelPaths are recorded relative to root. Duplicate skill names
// within the package are rejected (strict) or skipped with a warning
// (lenient); the same goes for unparseable skill files.
func extractSkillDirs(dir, root string, mode ExtractMode) ([]Skill, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, E(StageExtract, ClassIO, err).WithPath(dir)
	}

	var skills []Skill
	var warnings []string
	seen := map[string]string{} // skill name -> rel path of first occurrence

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, entry.Name())
		skillFile := filepath.Join(skillDir, SkillFileName)
		if !fileExists(skillFile) {
			continue
		}

		rel, err := filepath.Rel(root, skillDir)
		if err != nil {
			return nil, warnings, E(StageExtract, ClassIO, err).WithPath(skillDir)
		}
		relPath := filepath.ToSlash(rel)

		meta, err := parseSkillFile(skillFile)
		if err != nil {
			if mode == ModeLenient {
				warnings = append(warnings, fmt.Sprintf("%s: %v", relPath, err))
				continue
			}
			return nil, warnings, E(StageExtract, ClassParse, err).WithPath(skillFile)
		}

		if prev, dup := seen[meta.Name]; dup {
			if mode == ModeLenient {
				warnings = append(warnings, fmt.Sprintf(
					"%s: duplicate skill name %q (first declared at %s)", relPath, meta.Name, prev))
				continue
			}
			return nil, warnings, Ef(StageExtract, ClassValidation,
				"duplicate skill name %q at %s and %s", meta.Name, prev, relPath).WithPath(skillFile)
		}
		seen[meta.Name] = relPath

		skills = append(skills, Skill{
			Name:        meta.Name,
			Description: meta.Description,
			RelPath:     relPath,
		})
	}

	return skills, warnings, nil
}

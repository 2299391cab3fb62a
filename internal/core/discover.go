package core

import (
	"os"
	"path/filepath"
	"strings"
)

// GlobalManifestPath returns the fixed location of the global manifest.
func GlobalManifestPath(home string) string {
	return filepath.Join(home, GlobalDirName, ManifestFileName)
}

// DiscoverManifests finds the manifests that apply to startDir, closest
// first. It walks upward from startDir looking for skills.toml, stopping at
// the home directory when startDir is inside it and at the filesystem root
// otherwise, then independently checks the global manifest location.
//
// Only the closest project manifest participates; ancestors past it are not
// layered. The returned slice holds the project manifest (if any) followed by
// the global manifest (if any).
func DiscoverManifests(startDir, home string) ([]*Manifest, error) {
	var manifests []*Manifest

	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, E(StageDiscover, ClassIO, err).WithPath(startDir)
	}

	boundary := ""
	if home != "" && isWithin(home, start) {
		boundary = filepath.Clean(home)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, ManifestFileName)
		if fileExists(candidate) {
			mode := DiscoveryParent
			if dir == start {
				mode = DiscoveryLocal
			}
			m, err := LoadManifest(candidate, mode)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m)
			break
		}

		if dir == boundary {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if home != "" {
		globalPath := GlobalManifestPath(home)
		if fileExists(globalPath) {
			m, err := LoadManifest(globalPath, DiscoveryGlobal)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m)
		}
	}

	return manifests, nil
}

// isWithin reports whether path is dir or inside dir.
func isWithin(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if dir == path {
		return true
	}
	return strings.HasPrefix(path, dir+string(os.PathSeparator))
}

// MergeManifests combines applicable manifests into one effective manifest.
// Agent enablement is first-writer-wins per key. Dependencies are
// deduplicated by canonical package identity: the same alias resolving to
// different packages across manifests is a hard alias conflict, while the
// same package under different aliases keeps only the first occurrence.
func MergeManifests(manifests []*Manifest) (*Manifest, error) {
	if len(manifests) == 0 {
		return nil, Ef(StageMerge, ClassNotFound, "no manifests to merge")
	}
	if len(manifests) == 1 {
		return manifests[0], nil
	}

	merged := &Manifest{
		Package:      manifests[0].Package,
		Agents:       map[string]bool{},
		Dependencies: map[string]Declaration{},
		Exports:      manifests[0].Exports,
		Origin:       manifests[0].Origin,
		depSources:   map[string]string{},
	}

	aliasSource := map[string]string{} // alias -> manifest path of first writer
	aliasKey := map[string]string{}    // alias -> canonical key
	seenKeys := map[string]bool{}      // canonical key -> already declared

	for _, m := range manifests {
		for id, enabled := range m.Agents {
			if _, ok := merged.Agents[id]; !ok {
				merged.Agents[id] = enabled
			}
		}

		for _, alias := range sortedKeys(m.Dependencies) {
			decl := m.Dependencies[alias]
			key := ResolvePackage(alias, decl, m.Origin.Path).Key()

			if prevKey, ok := aliasKey[alias]; ok {
				if prevKey != key {
					return nil, Ef(StageMerge, ClassAliasConflict,
						"alias %q declared as different packages in %s and %s",
						alias, aliasSource[alias], m.Origin.Path)
				}
				continue
			}
			if seenKeys[key] {
				// Same package under another alias: first declaration wins.
				continue
			}

			merged.Dependencies[alias] = decl
			merged.depSources[alias] = m.Origin.Path
			aliasSource[alias] = m.Origin.Path
			aliasKey[alias] = key
			seenKeys[key] = true
		}
	}

	return merged, nil
}

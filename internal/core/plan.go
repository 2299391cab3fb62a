package core

import (
	"path/filepath"
	"sort"

	"skilldeck/internal/agent"
)

// InstallTask is one planned filesystem action: make targetPath provide the
// skill at sourcePath under targetName.
type InstallTask struct {
	TargetName string
	TargetPath string
	SourcePath string
	Link       bool // symlink instead of materializing a copy
}

// BuildPlan produces the deterministic install plan for one agent from the
// validated extraction output. Tasks are ordered by target name so repeated
// syncs plan identically.
func BuildPlan(ag agent.Resolved, pkgs []*DetectedPackage) []InstallTask {
	var tasks []InstallTask

	for _, pkg := range pkgs {
		link := pkg.Pkg.Strategy().Method == FetchSymlink
		for _, skill := range pkg.Skills {
			name := TargetName(pkg.Pkg.Prefix, skill.Name)
			source := pkg.Root
			if skill.RelPath != "" && skill.RelPath != "." {
				source = filepath.Join(pkg.Root, filepath.FromSlash(skill.RelPath))
			}
			tasks = append(tasks, InstallTask{
				TargetName: name,
				TargetPath: filepath.Join(ag.SkillsDir, name),
				SourcePath: source,
				Link:       link,
			})
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TargetName < tasks[j].TargetName })
	return tasks
}

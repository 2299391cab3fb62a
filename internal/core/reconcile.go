package core

import (
	"fmt"
	"os"
	"path/filepath"

	"skilldeck/internal/agent"
)

// ReconcileOptions configures one agent reconciliation.
type ReconcileOptions struct {
	DryRun bool
}

// ReconcileResult summarizes one agent reconciliation.
type ReconcileResult struct {
	Installed int
	Removed   int
	Warnings  []string
}

// Reconcile brings one agent's skills directory in line with the plan.
//
// The prior state file is the sole record of ownership: targets on disk that
// it does not list are never removed, and a desired target that already
// exists unmanaged is a fatal conflict. All conflicts are preflighted before
// any filesystem mutation, so a failing run removes nothing.
func Reconcile(ag agent.Resolved, plan []InstallTask, opts ReconcileOptions) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	prior, err := ReadState(ag.Root)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s: no install state found, skipping stale skill removal", ag.Def.ID))
	}

	desired := make(map[string]bool, len(plan))
	for _, task := range plan {
		desired[task.TargetName] = true
	}

	// Preflight: a desired target that exists on disk but is not recorded as
	// managed belongs to the user, not to us. Managed targets are re-applied
	// so their content tracks the fetched source, but only targets absent
	// from disk count as installed, keeping an unchanged sync a no-op in the
	// report.
	fresh := make(map[string]bool, len(plan))
	for _, task := range plan {
		if !pathExists(task.TargetPath) {
			fresh[task.TargetName] = true
			continue
		}
		if prior == nil || !prior.Has(task.TargetName) {
			return nil, Ef(StageInstall, ClassConflict,
				"skill target already exists and is not managed: %s", task.TargetPath)
		}
	}

	// Stale targets: managed previously, no longer desired, still on disk.
	var stale []string
	if prior != nil {
		for _, name := range prior.Skills {
			if !desired[name] && pathExists(filepath.Join(ag.SkillsDir, name)) {
				stale = append(stale, name)
			}
		}
	}

	if opts.DryRun {
		result.Installed = len(plan)
		result.Removed = len(stale)
		return result, nil
	}

	for _, name := range stale {
		target := filepath.Join(ag.SkillsDir, name)
		if err := os.RemoveAll(target); err != nil {
			return nil, E(StageReconcile, ClassIO, err).WithPath(target)
		}
		result.Removed++
	}

	if len(plan) > 0 {
		if err := os.MkdirAll(ag.SkillsDir, 0o755); err != nil {
			return nil, E(StageInstall, ClassIO, err).WithPath(ag.SkillsDir)
		}
	}

	for _, task := range plan {
		if err := installTarget(task); err != nil {
			return nil, err
		}
		if fresh[task.TargetName] {
			result.Installed++
		}
	}

	// Persist ownership. Creating state on a run that installed nothing and
	// had none before would claim ownership of nothing, so skip it.
	if prior != nil || len(plan) > 0 {
		names := make([]string, 0, len(plan))
		for _, task := range plan {
			names = append(names, task.TargetName)
		}
		if err := WriteState(ag.Root, names); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// installTarget materializes one task: a relative symlink for local
// packages (falling back to a copy where symlinks are unsupported), a full
// copy for cloned packages whose source directory is temporary.
func installTarget(task InstallTask) error {
	// Preflight guaranteed any existing entry here is managed.
	if err := os.RemoveAll(task.TargetPath); err != nil {
		return E(StageInstall, ClassIO, err).WithPath(task.TargetPath)
	}

	if task.Link {
		rel, err := filepath.Rel(filepath.Dir(task.TargetPath), task.SourcePath)
		if err != nil {
			return E(StageInstall, ClassIO, err).WithPath(task.TargetPath)
		}
		if err := os.Symlink(rel, task.TargetPath); err == nil {
			return nil
		}
		// Fall through to copy if symlink fails.
	}

	if err := os.MkdirAll(task.TargetPath, 0o755); err != nil {
		return E(StageInstall, ClassIO, err).WithPath(task.TargetPath)
	}
	if err := copyDirectory(task.SourcePath, task.TargetPath); err != nil {
		return E(StageInstall, ClassIO, err).WithPath(task.TargetPath)
	}
	return nil
}

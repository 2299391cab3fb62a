// Package core implements the skilldeck resolution-fetch-install-reconcile
// pipeline. It has no UI dependencies and is independently testable.
package core

import (
	"fmt"
	"os"
	"sort"

	"skilldeck/internal/agent"
)

// SyncOptions configures one sync run.
type SyncOptions struct {
	Dir     string   // project directory; manifests are discovered from here
	Home    string   // home directory override; "" uses os.UserHomeDir
	Global  bool     // sync the global manifest alone, at global agent scope
	DryRun  bool     // report counts without touching the filesystem
	Lenient bool     // downgrade per-package extraction problems to warnings
	Agents  []string // explicit agent ids, overriding the manifest selection
}

// AgentReport is the per-agent outcome of a sync.
type AgentReport struct {
	Agent     string
	Installed int
	Removed   int
}

// SyncReport is what a completed sync returns to the caller.
type SyncReport struct {
	Packages []*DetectedPackage
	Agents   []AgentReport
	Warnings []string
}

// Syncer runs the pipeline. The git runner is injected so tests can stub the
// fetch layer.
type Syncer struct {
	git GitRunner
}

// NewSyncer creates a Syncer using the given git runner.
func NewSyncer(git GitRunner) *Syncer {
	return &Syncer{git: git}
}

// Sync runs the full pipeline: discover and merge manifests, resolve
// dependencies, fetch, detect and extract skills, validate the batch, then
// plan and reconcile each enabled agent in turn.
//
// Agents are reconciled sequentially; an agent fully reconciled before a
// later failure stays committed. The scoped fetch directory is removed on
// every exit path.
func (s *Syncer) Sync(opts SyncOptions) (*SyncReport, error) {
	report := &SyncReport{}

	home := opts.Home
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, E(StageDiscover, ClassIO, err)
		}
	}

	manifest, err := s.loadManifest(opts, home)
	if err != nil {
		return nil, err
	}

	agents, err := s.resolveAgents(manifest, opts, home, report)
	if err != nil {
		return nil, err
	}

	packages := resolveDependencies(manifest)

	// A manifest with no dependencies still reconciles every agent, so
	// removing the last dependency empties the managed install set instead
	// of leaving it behind.
	if len(packages) == 0 {
		return report, s.reconcileAgents(agents, nil, opts, report)
	}

	workDir, err := os.MkdirTemp("", "skilldeck-sync-*")
	if err != nil {
		return nil, E(StageFetch, ClassIO, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groups, locals, err := BuildRepoGroups(packages)
	if err != nil {
		return nil, err
	}

	fetched, err := NewFetcher(s.git, workDir).Fetch(groups, locals)
	if err != nil {
		return nil, err
	}

	mode := ModeStrict
	if opts.Lenient {
		mode = ModeLenient
	}

	var detected []*DetectedPackage
	for _, fp := range fetched {
		pkg, warnings, err := DetectAndExtract(fp, mode)
		report.Warnings = append(report.Warnings, warnings...)
		if err != nil {
			return nil, err
		}
		detected = append(detected, pkg)
	}

	validated, warnings, err := ValidateBatch(detected, mode)
	report.Warnings = append(report.Warnings, warnings...)
	if err != nil {
		return nil, err
	}
	report.Packages = validated

	return report, s.reconcileAgents(agents, validated, opts, report)
}

// loadManifest selects the manifest layering for this run: the global
// manifest alone under --global, otherwise discovered project layers merged
// with the global manifest.
func (s *Syncer) loadManifest(opts SyncOptions, home string) (*Manifest, error) {
	if opts.Global {
		return LoadManifest(GlobalManifestPath(home), DiscoveryGlobal)
	}

	manifests, err := DiscoverManifests(opts.Dir, home)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, Ef(StageDiscover, ClassNotFound,
			"no %s found in %s or its parents", ManifestFileName, opts.Dir)
	}
	return MergeManifests(manifests)
}

// resolveAgents picks the agents this sync targets: the explicit override,
// the manifest's enabled set, or folder detection as a last resort.
func (s *Syncer) resolveAgents(m *Manifest, opts SyncOptions, home string, report *SyncReport) ([]agent.Resolved, error) {
	var defs []agent.Def

	switch {
	case len(opts.Agents) > 0:
		var err error
		defs, err = agent.ByIDs(opts.Agents)
		if err != nil {
			return nil, E(StageAgents, ClassValidation, err)
		}
	default:
		for _, id := range sortedKeys(m.Agents) {
			if !m.Agents[id] {
				continue
			}
			d, ok := agent.ByID(id)
			if !ok {
				return nil, Ef(StageAgents, ClassValidation,
					"unknown agent %q in [agents] of %s", id, m.Origin.Path)
			}
			defs = append(defs, d)
		}
		if len(defs) == 0 {
			defs = agent.DetectInFolder(opts.Dir)
			if len(defs) > 0 {
				ids := make([]string, len(defs))
				for i, d := range defs {
					ids[i] = d.ID
				}
				sort.Strings(ids)
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"no agents enabled in manifest, using detected agents: %v", ids))
			}
		}
	}

	if len(defs) == 0 {
		return nil, Ef(StageAgents, ClassValidation,
			"no agents to sync: enable one in [agents] or pass --agents")
	}

	scope := agent.ScopeProject
	if opts.Global {
		scope = agent.ScopeGlobal
	}

	resolved := make([]agent.Resolved, len(defs))
	for i, d := range defs {
		resolved[i] = d.Resolve(scope, opts.Dir, home)
	}
	return resolved, nil
}

// resolveDependencies maps every declaration to its canonical package,
// ordered by alias for deterministic fetch grouping. Each declaration
// resolves against the manifest that declared it, so relative local paths
// in a merged layer stay anchored to that layer's directory.
func resolveDependencies(m *Manifest) []CanonicalPackage {
	aliases := sortedKeys(m.Dependencies)
	packages := make([]CanonicalPackage, 0, len(aliases))
	for _, alias := range aliases {
		packages = append(packages, ResolvePackage(alias, m.Dependencies[alias], m.DependencySource(alias)))
	}
	return packages
}

// reconcileAgents plans and reconciles each agent in turn, accumulating
// per-agent counts into the report.
func (s *Syncer) reconcileAgents(agents []agent.Resolved, pkgs []*DetectedPackage, opts SyncOptions, report *SyncReport) error {
	for _, ag := range agents {
		plan := BuildPlan(ag, pkgs)
		res, err := Reconcile(ag, plan, ReconcileOptions{DryRun: opts.DryRun})
		if err != nil {
			return err
		}
		report.Agents = append(report.Agents, AgentReport{
			Agent:     ag.Def.ID,
			Installed: res.Installed,
			Removed:   res.Removed,
		})
		report.Warnings = append(report.Warnings, res.Warnings...)
	}
	return nil
}

// Sync runs the pipeline with the production git runner.
func Sync(opts SyncOptions) (*SyncReport, error) {
	return NewSyncer(NewGitRunner()).Sync(opts)
}

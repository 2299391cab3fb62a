package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RepoGroup collects remote packages that share a repository and ref, so the
// whole group is satisfied by a single checkout.
type RepoGroup struct {
	Kind     DeclKind
	RepoID   string
	CloneURL string
	Ref      Ref
	Members  []CanonicalPackage
	Subpaths []string // sorted union of member subpaths
	Full     bool     // any member wants the whole repository
}

// FetchedPackage binds a canonical package to its on-disk location.
type FetchedPackage struct {
	Pkg         CanonicalPackage
	RepoPath    string // checkout root (or the local dir itself)
	PackagePath string // RepoPath joined with the member's subpath
}

// BuildRepoGroups splits canonical packages into remote repo groups and
// local packages. Groups preserve first-seen order so fetch output is
// deterministic. Registry packages are rejected here: registry resolution is
// not implemented, and silently skipping them would make the install plan
// disagree with the manifest.
func BuildRepoGroups(pkgs []CanonicalPackage) ([]*RepoGroup, []CanonicalPackage, error) {
	groups := map[string]*RepoGroup{}
	var order []string
	var locals []CanonicalPackage

	for _, pkg := range pkgs {
		switch pkg.Kind {
		case KindLocal:
			locals = append(locals, pkg)
			continue
		case KindRegistry:
			return nil, nil, Ef(StageFetch, ClassValidation,
				"registry dependencies are not supported yet").WithOrigin(pkg.Origin)
		case KindGitHub, KindGit, KindClaudePlugin:
			// grouped below
		default:
			return nil, nil, Ef(StageFetch, ClassValidation,
				"unknown package kind %q", pkg.Kind).WithOrigin(pkg.Origin)
		}

		subpath, err := validateSubpath(pkg.Path)
		if err != nil {
			return nil, nil, E(StageFetch, ClassValidation, err).WithOrigin(pkg.Origin)
		}
		pkg.Path = subpath

		key := pkg.groupKey()
		g, ok := groups[key]
		if !ok {
			g = &RepoGroup{
				Kind:     pkg.Kind,
				RepoID:   pkg.RepoID,
				CloneURL: pkg.CloneURL,
				Ref:      pkg.Ref,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, pkg)

		if subpath == "" {
			// One full-repo member forces a full checkout for the group:
			// a sparse checkout would silently hide files from that member.
			g.Full = true
			g.Subpaths = nil
			continue
		}
		if !g.Full {
			g.Subpaths = append(g.Subpaths, subpath)
		}
	}

	result := make([]*RepoGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.Subpaths = dedupSorted(g.Subpaths)
		result = append(result, g)
	}
	return result, locals, nil
}

func dedupSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Fetcher performs checkouts into a scoped working directory owned by the
// caller. One checkout per group; members map onto it by subpath.
type Fetcher struct {
	git     GitRunner
	workDir string
}

// NewFetcher creates a Fetcher. workDir must exist; the caller removes it.
func NewFetcher(git GitRunner, workDir string) *Fetcher {
	return &Fetcher{git: git, workDir: workDir}
}

// Fetch checks out every repo group and validates every local package,
// returning the concrete path for each member. Any git failure is fatal to
// its group and aborts the fetch.
func (f *Fetcher) Fetch(groups []*RepoGroup, locals []CanonicalPackage) ([]FetchedPackage, error) {
	var fetched []FetchedPackage

	for i, group := range groups {
		dir := filepath.Join(f.workDir, fmt.Sprintf("repo-%03d-%s", i, pathSafeID(group.RepoID)))
		if err := f.checkout(group, dir); err != nil {
			return nil, err
		}

		for _, member := range group.Members {
			pkgPath := dir
			if member.Path != "" {
				pkgPath = filepath.Join(dir, filepath.FromSlash(member.Path))
			}
			if !dirExists(pkgPath) {
				return nil, Ef(StageFetch, ClassNotFound,
					"path %q does not exist in %s", member.Path, group.RepoID).WithOrigin(member.Origin)
			}
			fetched = append(fetched, FetchedPackage{Pkg: member, RepoPath: dir, PackagePath: pkgPath})
		}
	}

	for _, pkg := range locals {
		info, err := os.Stat(pkg.LocalDir)
		if err != nil {
			return nil, Ef(StageFetch, ClassNotFound,
				"local path not found: %s", pkg.LocalDir).WithOrigin(pkg.Origin)
		}
		if !info.IsDir() {
			return nil, Ef(StageFetch, ClassValidation,
				"local path is not a directory: %s", pkg.LocalDir).WithOrigin(pkg.Origin)
		}
		fetched = append(fetched, FetchedPackage{Pkg: pkg, RepoPath: pkg.LocalDir, PackagePath: pkg.LocalDir})
	}

	return fetched, nil
}

// checkout clones the group's repository into dir and positions it at the
// requested ref. Sparse groups use a blob-filtered clone with a cone-mode
// sparse-checkout restricted to the subpath union.
func (f *Fetcher) checkout(group *RepoGroup, dir string) error {
	origin := group.Members[0].Origin
	gitErr := func(err error) error {
		return E(StageFetch, ClassGit, err).WithOrigin(origin).WithPath(dir)
	}

	sparse := !group.Full && len(group.Subpaths) > 0

	cloneArgs := []string{"clone"}
	if sparse {
		cloneArgs = append(cloneArgs, "--filter=blob:none", "--no-checkout")
	}
	cloneArgs = append(cloneArgs, group.CloneURL, dir)
	if _, err := f.git.Run("", cloneArgs...); err != nil {
		return gitErr(err)
	}

	if sparse {
		args := append([]string{"sparse-checkout", "set", "--cone"}, group.Subpaths...)
		if _, err := f.git.Run(dir, args...); err != nil {
			return gitErr(err)
		}
	}

	ref := group.Ref
	switch {
	case ref.Tag != "":
		if _, err := f.git.Run(dir, "checkout", "--detach", "refs/tags/"+ref.Tag); err != nil {
			return gitErr(err)
		}
	case ref.Branch != "":
		if _, err := f.git.Run(dir, "checkout", "-B", ref.Branch, "--track", "origin/"+ref.Branch); err != nil {
			return gitErr(err)
		}
		if _, err := f.git.Run(dir, "reset", "--hard", "origin/"+ref.Branch); err != nil {
			return gitErr(err)
		}
	case ref.Commit != "":
		if _, err := f.git.Run(dir, "checkout", "--detach", ref.Commit); err != nil {
			return gitErr(err)
		}
	default:
		if sparse {
			// --no-checkout left the work tree empty; materialize the
			// advertised default branch.
			branch, err := f.git.Run(dir, "symbolic-ref", "--short", "HEAD")
			if err != nil {
				return gitErr(err)
			}
			if _, err := f.git.Run(dir, "checkout", strings.TrimSpace(branch)); err != nil {
				return gitErr(err)
			}
		}
	}

	return nil
}

// pathSafeID flattens a repo identity into a directory-name-safe string.
func pathSafeID(repoID string) string {
	return sanitizeRegexp.ReplaceAllString(strings.ToLower(repoID), "-")
}

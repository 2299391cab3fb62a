package core

import (
	"fmt"
	pathpkg "path"
	"path/filepath"
	"strings"
)

// DeclKind is the closed set of dependency source kinds. Every consumption
// site (resolution, serialization, fetch) switches exhaustively over it.
type DeclKind string

const (
	KindRegistry     DeclKind = "registry"
	KindGitHub       DeclKind = "github"
	KindGit          DeclKind = "git"
	KindLocal        DeclKind = "local"
	KindClaudePlugin DeclKind = "claude-plugin"
)

// Ref pins a remote dependency to a tag, branch, or commit.
// At most one field is set; the zero value means "default branch".
type Ref struct {
	Tag    string
	Branch string
	Commit string
}

// IsZero reports whether no ref was declared.
func (r Ref) IsZero() bool { return r.Tag == "" && r.Branch == "" && r.Commit == "" }

// String renders the ref for dedup keys and messages.
func (r Ref) String() string {
	switch {
	case r.Tag != "":
		return "tag:" + r.Tag
	case r.Branch != "":
		return "branch:" + r.Branch
	case r.Commit != "":
		return "commit:" + r.Commit
	default:
		return "default"
	}
}

// Declaration is a validated dependency declaration from a manifest.
// Which fields are meaningful depends on Kind.
type Declaration struct {
	Kind DeclKind

	Name    string // registry: package name
	Version string // registry: requested version

	Owner string // github, claude-plugin: repository owner
	Repo  string // github, claude-plugin: repository name

	URL string // git: clone URL

	Dir string // local: directory path as written in the manifest

	Plugin string // claude-plugin: plugin name inside the marketplace

	Ref  Ref    // remote kinds: optional tag/branch/commit
	Path string // remote kinds: optional repository-relative subpath
}

// PackageOrigin traces a canonical package back to the manifest line that
// declared it. It is threaded through every downstream error.
type PackageOrigin struct {
	Alias        string
	ManifestPath string
}

// FetchMethod is how a canonical package reaches the local filesystem.
type FetchMethod string

const (
	FetchSymlink FetchMethod = "symlink"
	FetchClone   FetchMethod = "clone"
)

// FetchStrategy is derived from a canonical package, never stored.
type FetchStrategy struct {
	Method FetchMethod
	Sparse bool
}

// CanonicalPackage is the fully-resolved, declaration-independent
// representation of a dependency, ready for fetch.
type CanonicalPackage struct {
	Kind     DeclKind
	CloneURL string // remote kinds: URL handed to git
	RepoID   string // remote kinds: normalized repository identity for dedup
	Ref      Ref
	Path     string // normalized repository-relative subpath, "" for whole repo
	LocalDir string // local: absolute source directory
	Plugin   string // claude-plugin: plugin name
	Name     string // registry: package name
	Version  string // registry: requested version
	Origin   PackageOrigin
	Prefix   string // install target namespace, the declaring alias
}

// ResolvePackage maps a validated declaration to its canonical package.
// It is pure and total over the closed declaration variant: validation
// happened at parse time, so this function cannot fail.
func ResolvePackage(alias string, d Declaration, manifestPath string) CanonicalPackage {
	pkg := CanonicalPackage{
		Kind:   d.Kind,
		Ref:    d.Ref,
		Path:   normalizeSubpath(d.Path),
		Origin: PackageOrigin{Alias: alias, ManifestPath: manifestPath},
		Prefix: alias,
	}

	switch d.Kind {
	case KindRegistry:
		pkg.Name = d.Name
		pkg.Version = d.Version
	case KindGitHub:
		pkg.CloneURL = fmt.Sprintf("https://github.com/%s/%s.git", d.Owner, d.Repo)
		pkg.RepoID = "github.com/" + strings.ToLower(d.Owner) + "/" + strings.ToLower(d.Repo)
	case KindGit:
		pkg.CloneURL = d.URL
		pkg.RepoID = normalizeGitURL(d.URL)
	case KindLocal:
		pkg.LocalDir = resolveLocalDir(d.Dir, manifestPath)
	case KindClaudePlugin:
		pkg.CloneURL = fmt.Sprintf("https://github.com/%s/%s.git", d.Owner, d.Repo)
		pkg.RepoID = "github.com/" + strings.ToLower(d.Owner) + "/" + strings.ToLower(d.Repo)
		pkg.Plugin = d.Plugin
	}

	return pkg
}

// Strategy derives how this package is fetched: local packages are symlinked,
// remote packages are cloned, sparsely iff a subpath was declared.
func (p CanonicalPackage) Strategy() FetchStrategy {
	switch p.Kind {
	case KindLocal:
		return FetchStrategy{Method: FetchSymlink}
	default:
		return FetchStrategy{Method: FetchClone, Sparse: p.Path != ""}
	}
}

// Key is the declaration-independent identity used to deduplicate packages
// across manifests. Two declarations with equal keys are the same package.
func (p CanonicalPackage) Key() string {
	switch p.Kind {
	case KindRegistry:
		return string(p.Kind) + "|" + p.Name + "@" + p.Version
	case KindLocal:
		return string(p.Kind) + "|" + p.LocalDir
	default:
		return string(p.Kind) + "|" + p.RepoID + "|" + p.Ref.String() + "|" + p.Path + "|" + p.Plugin
	}
}

// groupKey identifies the repo group this package belongs to. Packages that
// differ only in subpath share a group and therefore a checkout.
func (p CanonicalPackage) groupKey() string {
	return string(p.Kind) + "|" + p.RepoID + "|" + p.Ref.String()
}

// normalizeSubpath converts a validated subpath to its canonical
// forward-slash form. Validation (relative, no "..") happened at parse time;
// the same rules are re-checked at fetch time before use as a sparse key.
func normalizeSubpath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := pathpkg.Clean(filepath.ToSlash(p))
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// validateSubpath checks that a subpath is relative, traversal-free, and
// returns its normalized form.
func validateSubpath(p string) (string, error) {
	cleaned := normalizeSubpath(p)
	if cleaned == "" {
		return "", nil
	}
	if pathpkg.IsAbs(cleaned) || filepath.IsAbs(p) {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q must not traverse outside the repository", p)
	}
	return cleaned, nil
}

// normalizeGitURL reduces a git clone URL to a stable identity for dedup:
// lowercased scheme/host, trailing ".git" and "/" stripped. SSH shorthand
// (git@host:owner/repo) is folded into host/owner/repo form.
func normalizeGitURL(url string) string {
	u := strings.TrimSpace(url)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")

	if rest, ok := strings.CutPrefix(u, "git@"); ok {
		// git@host:owner/repo -> host/owner/repo
		host, path, found := strings.Cut(rest, ":")
		if found {
			return strings.ToLower(host) + "/" + path
		}
		return strings.ToLower(rest)
	}

	for _, scheme := range []string{"https://", "http://", "ssh://", "git://"} {
		if rest, ok := strings.CutPrefix(u, scheme); ok {
			host, path, found := strings.Cut(rest, "/")
			if found {
				return strings.ToLower(host) + "/" + path
			}
			return strings.ToLower(rest)
		}
	}

	return u
}

// resolveLocalDir makes a manifest-declared local path absolute. Relative
// paths resolve against the directory of the declaring manifest.
func resolveLocalDir(dir, manifestPath string) string {
	expanded := expandPath(dir)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(manifestPath), expanded))
}

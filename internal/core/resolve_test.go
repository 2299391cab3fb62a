package core

import (
	"testing"
)

func TestResolvePackageGitHub(t *testing.T) {
	pkg := ResolvePackage("review", Declaration{
		Kind: KindGitHub, Owner: "Anthropics", Repo: "Skills",
		Ref: Ref{Tag: "v1"}, Path: "./go/review/",
	}, "/project/skills.toml")

	if pkg.CloneURL != "https://github.com/Anthropics/Skills.git" {
		t.Errorf("CloneURL = %q", pkg.CloneURL)
	}
	if pkg.RepoID != "github.com/anthropics/skills" {
		t.Errorf("RepoID = %q", pkg.RepoID)
	}
	if pkg.Path != "go/review" {
		t.Errorf("Path = %q, want normalized subpath", pkg.Path)
	}
	if pkg.Prefix != "review" || pkg.Origin.Alias != "review" {
		t.Errorf("prefix/origin = %q/%q", pkg.Prefix, pkg.Origin.Alias)
	}
}

func TestResolvePackageLocalRelative(t *testing.T) {
	pkg := ResolvePackage("local", Declaration{Kind: KindLocal, Dir: "../shared/skills"}, "/home/me/project/skills.toml")
	if pkg.LocalDir != "/home/me/shared/skills" {
		t.Errorf("LocalDir = %q", pkg.LocalDir)
	}

	abs := ResolvePackage("abs", Declaration{Kind: KindLocal, Dir: "/opt/skills"}, "/home/me/project/skills.toml")
	if abs.LocalDir != "/opt/skills" {
		t.Errorf("LocalDir = %q", abs.LocalDir)
	}
}

func TestStrategy(t *testing.T) {
	local := CanonicalPackage{Kind: KindLocal}
	if s := local.Strategy(); s.Method != FetchSymlink || s.Sparse {
		t.Errorf("local strategy = %+v", s)
	}

	full := CanonicalPackage{Kind: KindGitHub}
	if s := full.Strategy(); s.Method != FetchClone || s.Sparse {
		t.Errorf("full strategy = %+v", s)
	}

	sparse := CanonicalPackage{Kind: KindGit, Path: "sub/dir"}
	if s := sparse.Strategy(); s.Method != FetchClone || !s.Sparse {
		t.Errorf("sparse strategy = %+v", s)
	}
}

func TestPackageKeyIdentity(t *testing.T) {
	// The same repository declared as gh shorthand and as an https git URL
	// resolves to the same identity.
	gh := ResolvePackage("a", Declaration{Kind: KindGitHub, Owner: "Owner", Repo: "Repo"}, "m1")
	git := ResolvePackage("b", Declaration{Kind: KindGit, URL: "https://github.com/owner/repo.git"}, "m2")
	if gh.RepoID != git.RepoID {
		t.Errorf("RepoID mismatch: %q != %q", gh.RepoID, git.RepoID)
	}

	// Keys ignore the alias but not the ref or subpath.
	if gh.Key() == ResolvePackage("a", Declaration{Kind: KindGitHub, Owner: "Owner", Repo: "Repo", Ref: Ref{Tag: "v1"}}, "m1").Key() {
		t.Error("key ignores ref")
	}
	if gh.Key() == ResolvePackage("a", Declaration{Kind: KindGitHub, Owner: "Owner", Repo: "Repo", Path: "sub"}, "m1").Key() {
		t.Error("key ignores subpath")
	}
}

func TestNormalizeGitURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://github.com/Owner/Repo.git", "github.com/Owner/Repo"},
		{"https://github.com/owner/repo/", "github.com/owner/repo"},
		{"git@github.com:owner/repo.git", "github.com/owner/repo"},
		{"ssh://git@example.com/team/skills", "git@example.com/team/skills"},
		{"git://Example.COM/x/y.git", "example.com/x/y"},
	}
	for _, tc := range cases {
		if got := normalizeGitURL(tc.in); got != tc.want {
			t.Errorf("normalizeGitURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateSubpath(t *testing.T) {
	if got, err := validateSubpath("./a/b/../c/"); err != nil || got != "a/c" {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := validateSubpath("/abs"); err == nil {
		t.Error("absolute subpath accepted")
	}
	if _, err := validateSubpath("a/../../b"); err == nil {
		t.Error("traversal subpath accepted")
	}
	if got, err := validateSubpath(""); err != nil || got != "" {
		t.Errorf("empty subpath: %q, %v", got, err)
	}
}

func TestRefString(t *testing.T) {
	cases := []struct {
		ref  Ref
		want string
	}{
		{Ref{}, "default"},
		{Ref{Tag: "v1"}, "tag:v1"},
		{Ref{Branch: "main"}, "branch:main"},
		{Ref{Commit: "abc"}, "commit:abc"},
	}
	for _, tc := range cases {
		if got := tc.ref.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

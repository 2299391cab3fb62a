package core

import (
	"strings"
	"testing"
)

func parseTestManifest(t *testing.T, data string) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(data), ManifestOrigin{Mode: DiscoveryLocal, Path: "/project/skills.toml"})
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	return m
}

func TestParseManifestShorthands(t *testing.T) {
	m := parseTestManifest(t, `
[dependencies]
review = "anthropics/skills"
fmt = "formatter@1.2.0"
`)

	review := m.Dependencies["review"]
	if review.Kind != KindGitHub || review.Owner != "anthropics" || review.Repo != "skills" {
		t.Errorf("review = %+v, want github anthropics/skills", review)
	}

	fmtDep := m.Dependencies["fmt"]
	if fmtDep.Kind != KindRegistry || fmtDep.Name != "formatter" || fmtDep.Version != "1.2.0" {
		t.Errorf("fmt = %+v, want registry formatter@1.2.0", fmtDep)
	}
}

func TestParseManifestTables(t *testing.T) {
	m := parseTestManifest(t, `
[agents]
claude-code = true
cursor = false

[dependencies]
pinned = { gh = "owner/repo", tag = "v1.0.0", path = "skills/go" }
remote = { git = "https://git.sr.ht/~me/skills.git", branch = "main" }
local = { path = "../my-skills" }
plug = { claude-plugin = "reviewer@anthropics/marketplace" }
`)

	if !m.Agents["claude-code"] || m.Agents["cursor"] {
		t.Errorf("agents = %v", m.Agents)
	}

	pinned := m.Dependencies["pinned"]
	if pinned.Kind != KindGitHub || pinned.Ref.Tag != "v1.0.0" || pinned.Path != "skills/go" {
		t.Errorf("pinned = %+v", pinned)
	}

	remote := m.Dependencies["remote"]
	if remote.Kind != KindGit || remote.URL != "https://git.sr.ht/~me/skills.git" || remote.Ref.Branch != "main" {
		t.Errorf("remote = %+v", remote)
	}

	local := m.Dependencies["local"]
	if local.Kind != KindLocal || local.Dir != "../my-skills" {
		t.Errorf("local = %+v", local)
	}

	plug := m.Dependencies["plug"]
	if plug.Kind != KindClaudePlugin || plug.Plugin != "reviewer" || plug.Owner != "anthropics" || plug.Repo != "marketplace" {
		t.Errorf("plug = %+v", plug)
	}
}

func TestParseManifestRejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"unknown top-level key", "[unknown]\nx = 1\n", "unknown keys"},
		{"bad alias", "[dependencies]\n\"-bad\" = \"owner/repo\"\n", "invalid dependency alias"},
		{"bad shorthand", "[dependencies]\nx = \"not a source\"\n", "unrecognized shorthand"},
		{"two refs", "[dependencies]\nx = { gh = \"o/r\", tag = \"v1\", branch = \"main\" }\n", "at most one of"},
		{"two sources", "[dependencies]\nx = { gh = \"o/r\", git = \"https://x/y.git\" }\n", "exactly one of"},
		{"unknown dep key", "[dependencies]\nx = { gh = \"o/r\", bogus = \"y\" }\n", "unknown key"},
		{"ref on local", "[dependencies]\nx = { path = \"./d\", tag = \"v1\" }\n", "does not take tag"},
		{"traversal subpath", "[dependencies]\nx = { gh = \"o/r\", path = \"../up\" }\n", "traverse"},
		{"plugin shape", "[dependencies]\nx = { claude-plugin = \"just-a-name\" }\n", "claude-plugin must be"},
		{"no source", "[dependencies]\nx = { tag = \"v1\" }\n", "is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.data), ManifestOrigin{Path: "test.toml"})
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestParseManifestExports(t *testing.T) {
	m := parseTestManifest(t, "[exports.auto_discover]\nskills = \"./my-skills\"\n")
	if m.Exports == nil || m.Exports.SkillsDir != "my-skills" || m.Exports.Disabled {
		t.Errorf("exports = %+v", m.Exports)
	}

	m = parseTestManifest(t, "[exports.auto_discover]\nskills = false\n")
	if m.Exports == nil || !m.Exports.Disabled {
		t.Errorf("exports = %+v, want disabled", m.Exports)
	}

	if _, err := ParseManifest([]byte("[exports.auto_discover]\nskills = 3\n"), ManifestOrigin{}); err == nil {
		t.Error("expected error for numeric skills export")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	src := `[agents]
claude-code = true

[dependencies]
local = { path = "../my-skills" }
pinned = { gh = "owner/repo", tag = "v1.0.0", path = "skills/go" }
plug = { claude-plugin = "reviewer@anthropics/marketplace" }
review = "anthropics/skills"
`
	m := parseTestManifest(t, src)
	out, err := MarshalManifest(m, WriteOptions{})
	if err != nil {
		t.Fatalf("MarshalManifest: %v", err)
	}

	again, err := ParseManifest(out, m.Origin)
	if err != nil {
		t.Fatalf("reparsing serialized manifest: %v\n%s", err, out)
	}
	if len(again.Dependencies) != len(m.Dependencies) {
		t.Fatalf("round trip lost dependencies: %d != %d", len(again.Dependencies), len(m.Dependencies))
	}
	for alias, want := range m.Dependencies {
		if got := again.Dependencies[alias]; got != want {
			t.Errorf("%s: %+v != %+v", alias, got, want)
		}
	}

	// Plain github shorthand survives as shorthand.
	if !strings.Contains(string(out), `review = "anthropics/skills"`) {
		t.Errorf("shorthand not preserved:\n%s", out)
	}
}

func TestManifestImmutableHelpers(t *testing.T) {
	m := parseTestManifest(t, "[dependencies]\na = \"o/r\"\n")

	m2 := m.WithDependency("b", Declaration{Kind: KindLocal, Dir: "./x"})
	if _, ok := m.Dependencies["b"]; ok {
		t.Error("WithDependency mutated the receiver")
	}
	if _, ok := m2.Dependencies["b"]; !ok {
		t.Error("WithDependency did not add to the copy")
	}

	m3 := m2.WithoutDependency("a")
	if _, ok := m2.Dependencies["a"]; !ok {
		t.Error("WithoutDependency mutated the receiver")
	}
	if _, ok := m3.Dependencies["a"]; ok {
		t.Error("WithoutDependency did not remove from the copy")
	}

	m4 := m.WithAgent("cursor", true)
	if m.Agents["cursor"] || !m4.Agents["cursor"] {
		t.Error("WithAgent mutation leaked or was lost")
	}
}

func TestDeclarationFromSource(t *testing.T) {
	cases := []struct {
		source, tag, branch, rev, subpath string
		want                              Declaration
	}{
		{"owner/repo", "", "", "", "", Declaration{Kind: KindGitHub, Owner: "owner", Repo: "repo"}},
		{"owner/repo", "v2", "", "", "skills", Declaration{Kind: KindGitHub, Owner: "owner", Repo: "repo", Ref: Ref{Tag: "v2"}, Path: "skills"}},
		{"https://example.com/r.git", "", "dev", "", "", Declaration{Kind: KindGit, URL: "https://example.com/r.git", Ref: Ref{Branch: "dev"}}},
		{"git@github.com:o/r.git", "", "", "abc123", "", Declaration{Kind: KindGit, URL: "git@github.com:o/r.git", Ref: Ref{Commit: "abc123"}}},
		{"./skills", "", "", "", "", Declaration{Kind: KindLocal, Dir: "./skills"}},
		{"name@1.0.0", "", "", "", "", Declaration{Kind: KindRegistry, Name: "name", Version: "1.0.0"}},
		{"claude-plugin:rev@o/market", "", "", "", "", Declaration{Kind: KindClaudePlugin, Plugin: "rev", Owner: "o", Repo: "market"}},
	}

	for _, tc := range cases {
		got, err := DeclarationFromSource("x", tc.source, tc.tag, tc.branch, tc.rev, tc.subpath)
		if err != nil {
			t.Errorf("%q: %v", tc.source, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %+v, want %+v", tc.source, got, tc.want)
		}
	}

	if _, err := DeclarationFromSource("x", "./skills", "", "", "", "sub"); err == nil {
		t.Error("expected error for --path with local source")
	}
	if _, err := DeclarationFromSource("x", "garbage source", "v1", "", "", ""); err == nil {
		t.Error("expected error for unrecognized source with ref")
	}
}

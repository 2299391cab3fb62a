package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestFileName is the manifest looked for in project directories and
	// inside fetched packages.
	ManifestFileName = "skills.toml"

	// GlobalDirName holds the global manifest under the home directory.
	GlobalDirName = ".skilldeck"

	// defaultSkillsExport is the skill directory assumed when a package
	// manifest enables auto-discovery without naming one.
	defaultSkillsExport = "./skills"
)

// DiscoveryMode records how a manifest was found.
type DiscoveryMode string

const (
	DiscoveryLocal  DiscoveryMode = "local"  // in the start directory itself
	DiscoveryParent DiscoveryMode = "parent" // in an ancestor directory
	DiscoveryGlobal DiscoveryMode = "global" // the fixed global manifest
)

// ManifestOrigin records where a manifest came from.
type ManifestOrigin struct {
	Mode DiscoveryMode
	Path string // absolute path of the manifest file
}

// PackageMeta is the optional [package] block of a manifest.
type PackageMeta struct {
	Name        string `toml:"name,omitempty"`
	Version     string `toml:"version,omitempty"`
	Description string `toml:"description,omitempty"`
}

// Exports is the optional [exports] block controlling skill auto-discovery
// when this manifest's directory is consumed as a package.
type Exports struct {
	// SkillsDir is the exported skill directory. Empty means the default.
	SkillsDir string
	// Disabled is set when the manifest declares `skills = false`.
	Disabled bool
}

// Manifest is a parsed, validated skills.toml. Values are immutable once
// parsed; every mutation helper returns a fresh copy.
type Manifest struct {
	Package      *PackageMeta
	Agents       map[string]bool
	Dependencies map[string]Declaration
	Exports      *Exports
	Origin       ManifestOrigin

	// depSources maps aliases to the path of the manifest that declared
	// them. Populated by MergeManifests; for an unmerged manifest every
	// dependency comes from Origin.Path.
	depSources map[string]string
}

// DependencySource returns the path of the manifest that declared alias.
// Relative local paths and error provenance must resolve against this, not
// against the merged manifest's own origin.
func (m *Manifest) DependencySource(alias string) string {
	if p, ok := m.depSources[alias]; ok {
		return p
	}
	return m.Origin.Path
}

// aliasPattern restricts dependency aliases to names that are safe both as
// TOML bare keys and as install target prefixes.
var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ownerRepoPattern matches "owner/repo" (exactly two segments).
var ownerRepoPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

// rawManifest mirrors the TOML document before validation.
type rawManifest struct {
	Package      *PackageMeta           `toml:"package"`
	Agents       map[string]bool        `toml:"agents"`
	Dependencies map[string]interface{} `toml:"dependencies"`
	Exports      *rawExports            `toml:"exports"`
}

type rawExports struct {
	AutoDiscover map[string]interface{} `toml:"auto_discover"`
}

// ParseManifest parses and validates manifest file contents.
// Malformed syntax, unknown top-level keys, and structurally invalid entries
// each produce one typed error.
func ParseManifest(data []byte, origin ManifestOrigin) (*Manifest, error) {
	var raw rawManifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, Ef(StageParse, ClassValidation, "unknown keys in manifest:\n%s", strict.String()).WithPath(origin.Path)
		}
		return nil, E(StageParse, ClassParse, err).WithPath(origin.Path)
	}

	m := &Manifest{
		Package:      raw.Package,
		Agents:       map[string]bool{},
		Dependencies: map[string]Declaration{},
		Origin:       origin,
	}

	for id, enabled := range raw.Agents {
		if strings.TrimSpace(id) == "" {
			return nil, Ef(StageParse, ClassValidation, "empty agent id in [agents]").WithPath(origin.Path)
		}
		m.Agents[id] = enabled
	}

	for alias, value := range raw.Dependencies {
		if !aliasPattern.MatchString(alias) {
			return nil, Ef(StageParse, ClassValidation, "invalid dependency alias %q", alias).WithPath(origin.Path)
		}
		decl, err := validateDeclaration(alias, value)
		if err != nil {
			return nil, E(StageParse, ClassValidation, err).WithPath(origin.Path)
		}
		m.Dependencies[alias] = decl
	}

	if raw.Exports != nil {
		exports, err := validateExports(raw.Exports)
		if err != nil {
			return nil, E(StageParse, ClassValidation, err).WithPath(origin.Path)
		}
		m.Exports = exports
	}

	return m, nil
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string, mode DiscoveryMode) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Ef(StageDiscover, ClassNotFound, "manifest not found").WithPath(path)
		}
		return nil, E(StageDiscover, ClassIO, err).WithPath(path)
	}
	return ParseManifest(data, ManifestOrigin{Mode: mode, Path: path})
}

// validateDeclaration turns a raw TOML dependency value into a Declaration.
//
// Accepted shapes:
//   - "name@version"            registry shorthand
//   - "owner/repo"              GitHub shorthand
//   - { gh = "owner/repo", ... }
//   - { git = "url", ... }
//   - { path = "dir" }          local directory
//   - { claude-plugin = "plugin@owner/repo" }
//
// Tables take at most one of tag/branch/rev, and path doubles as the
// repo-relative subpath when gh or git is present.
func validateDeclaration(alias string, value interface{}) (Declaration, error) {
	switch v := value.(type) {
	case string:
		return validateShorthand(alias, v)
	case map[string]interface{}:
		return validateTable(alias, v)
	default:
		return Declaration{}, fmt.Errorf("dependency %q: expected string or table, got %T", alias, value)
	}
}

func validateShorthand(alias, s string) (Declaration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Declaration{}, fmt.Errorf("dependency %q: empty source", alias)
	}

	if ownerRepoPattern.MatchString(s) {
		owner, repo, _ := strings.Cut(s, "/")
		return Declaration{Kind: KindGitHub, Owner: owner, Repo: repo}, nil
	}

	if name, version, found := strings.Cut(s, "@"); found && name != "" && version != "" && !strings.Contains(s, "/") {
		return Declaration{Kind: KindRegistry, Name: name, Version: version}, nil
	}

	return Declaration{}, fmt.Errorf("dependency %q: unrecognized shorthand %q (want \"name@version\" or \"owner/repo\")", alias, s)
}

func validateTable(alias string, table map[string]interface{}) (Declaration, error) {
	str := func(key string) (string, error) {
		v, ok := table[key]
		if !ok {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("dependency %q: %s must be a string", alias, key)
		}
		return s, nil
	}

	for key := range table {
		switch key {
		case "gh", "git", "path", "claude-plugin", "tag", "branch", "rev":
		default:
			return Declaration{}, fmt.Errorf("dependency %q: unknown key %q", alias, key)
		}
	}

	gh, err := str("gh")
	if err != nil {
		return Declaration{}, err
	}
	gitURL, err := str("git")
	if err != nil {
		return Declaration{}, err
	}
	pathVal, err := str("path")
	if err != nil {
		return Declaration{}, err
	}
	plugin, err := str("claude-plugin")
	if err != nil {
		return Declaration{}, err
	}
	tag, err := str("tag")
	if err != nil {
		return Declaration{}, err
	}
	branch, err := str("branch")
	if err != nil {
		return Declaration{}, err
	}
	rev, err := str("rev")
	if err != nil {
		return Declaration{}, err
	}

	refCount := 0
	for _, r := range []string{tag, branch, rev} {
		if r != "" {
			refCount++
		}
	}
	if refCount > 1 {
		return Declaration{}, fmt.Errorf("dependency %q: at most one of tag, branch, rev may be set", alias)
	}
	ref := Ref{Tag: tag, Branch: branch, Commit: rev}

	sources := 0
	for _, s := range []string{gh, gitURL, plugin} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return Declaration{}, fmt.Errorf("dependency %q: exactly one of gh, git, path, claude-plugin may be the source", alias)
	}

	switch {
	case gh != "":
		if !ownerRepoPattern.MatchString(gh) {
			return Declaration{}, fmt.Errorf("dependency %q: gh must be \"owner/repo\", got %q", alias, gh)
		}
		subpath, err := validateSubpath(pathVal)
		if err != nil {
			return Declaration{}, fmt.Errorf("dependency %q: %w", alias, err)
		}
		owner, repo, _ := strings.Cut(gh, "/")
		return Declaration{Kind: KindGitHub, Owner: owner, Repo: repo, Ref: ref, Path: subpath}, nil

	case gitURL != "":
		subpath, err := validateSubpath(pathVal)
		if err != nil {
			return Declaration{}, fmt.Errorf("dependency %q: %w", alias, err)
		}
		return Declaration{Kind: KindGit, URL: gitURL, Ref: ref, Path: subpath}, nil

	case plugin != "":
		name, marketplace, found := strings.Cut(plugin, "@")
		if !found || name == "" || !ownerRepoPattern.MatchString(marketplace) {
			return Declaration{}, fmt.Errorf("dependency %q: claude-plugin must be \"plugin@owner/repo\", got %q", alias, plugin)
		}
		if pathVal != "" {
			return Declaration{}, fmt.Errorf("dependency %q: claude-plugin does not take a path", alias)
		}
		owner, repo, _ := strings.Cut(marketplace, "/")
		return Declaration{Kind: KindClaudePlugin, Owner: owner, Repo: repo, Plugin: name, Ref: ref}, nil

	case pathVal != "":
		if !ref.IsZero() {
			return Declaration{}, fmt.Errorf("dependency %q: local path does not take tag, branch, or rev", alias)
		}
		return Declaration{Kind: KindLocal, Dir: pathVal}, nil

	default:
		return Declaration{}, fmt.Errorf("dependency %q: one of gh, git, path, claude-plugin is required", alias)
	}
}

// DeclarationFromSource builds a Declaration from a CLI-style source string
// plus optional ref and subpath. The source is classified by shape:
// "plugin@owner/repo" with the claude-plugin marker, "owner/repo" as GitHub,
// path-looking strings (./x, ../x, /x, ~/x) as local directories, URLs and
// scp-style remotes as git, and "name@version" as registry.
func DeclarationFromSource(alias, source, tag, branch, rev, subpath string) (Declaration, error) {
	source = strings.TrimSpace(source)
	table := map[string]interface{}{}

	switch {
	case strings.HasPrefix(source, "claude-plugin:"):
		table["claude-plugin"] = strings.TrimPrefix(source, "claude-plugin:")
	case strings.HasPrefix(source, "./"), strings.HasPrefix(source, "../"),
		strings.HasPrefix(source, "/"), strings.HasPrefix(source, "~"):
		if subpath != "" {
			return Declaration{}, fmt.Errorf("dependency %q: --path only applies to git sources", alias)
		}
		table["path"] = source
	case strings.Contains(source, "://"), strings.HasPrefix(source, "git@"):
		table["git"] = source
	case ownerRepoPattern.MatchString(source):
		table["gh"] = source
	default:
		if tag == "" && branch == "" && rev == "" && subpath == "" {
			return validateShorthand(alias, source)
		}
		return Declaration{}, fmt.Errorf("dependency %q: unrecognized source %q", alias, source)
	}

	if tag != "" {
		table["tag"] = tag
	}
	if branch != "" {
		table["branch"] = branch
	}
	if rev != "" {
		table["rev"] = rev
	}
	if subpath != "" {
		table["path"] = subpath
	}
	return validateTable(alias, table)
}

// ValidAlias reports whether s is usable as a dependency alias.
func ValidAlias(s string) bool {
	return aliasPattern.MatchString(s)
}

func validateExports(raw *rawExports) (*Exports, error) {
	if raw.AutoDiscover == nil {
		return &Exports{}, nil
	}
	for key := range raw.AutoDiscover {
		if key != "skills" {
			return nil, fmt.Errorf("[exports.auto_discover]: unknown key %q", key)
		}
	}
	v, ok := raw.AutoDiscover["skills"]
	if !ok {
		return &Exports{}, nil
	}
	switch skills := v.(type) {
	case string:
		sub, err := validateSubpath(skills)
		if err != nil {
			return nil, fmt.Errorf("[exports.auto_discover] skills: %w", err)
		}
		return &Exports{SkillsDir: sub}, nil
	case bool:
		if skills {
			return &Exports{}, nil
		}
		return &Exports{Disabled: true}, nil
	default:
		return nil, fmt.Errorf("[exports.auto_discover] skills: expected string or false, got %T", v)
	}
}

// --- Immutable mutation helpers ---

func (m *Manifest) clone() *Manifest {
	out := &Manifest{
		Package:      m.Package,
		Agents:       make(map[string]bool, len(m.Agents)),
		Dependencies: make(map[string]Declaration, len(m.Dependencies)),
		Exports:      m.Exports,
		Origin:       m.Origin,
	}
	for k, v := range m.Agents {
		out.Agents[k] = v
	}
	for k, v := range m.Dependencies {
		out.Dependencies[k] = v
	}
	if m.depSources != nil {
		out.depSources = make(map[string]string, len(m.depSources))
		for k, v := range m.depSources {
			out.depSources[k] = v
		}
	}
	return out
}

// WithDependency returns a copy of the manifest with the dependency set.
func (m *Manifest) WithDependency(alias string, d Declaration) *Manifest {
	out := m.clone()
	out.Dependencies[alias] = d
	return out
}

// WithoutDependency returns a copy of the manifest without the alias.
func (m *Manifest) WithoutDependency(alias string) *Manifest {
	out := m.clone()
	delete(out.Dependencies, alias)
	delete(out.depSources, alias)
	return out
}

// WithAgent returns a copy of the manifest with the agent enablement set.
func (m *Manifest) WithAgent(id string, enabled bool) *Manifest {
	out := m.clone()
	out.Agents[id] = enabled
	return out
}

// --- Serialization ---

// WriteOptions controls manifest serialization.
type WriteOptions struct {
	// KeepEmptySections preserves empty [agents] / [dependencies] headers.
	// Off by default so generated manifests stay minimal; callers rewriting a
	// human-edited file opt in to avoid dropping intentionally empty sections.
	KeepEmptySections bool
}

// WriteManifest serializes the manifest and writes it atomically.
func WriteManifest(m *Manifest, path string, opts WriteOptions) error {
	data, err := MarshalManifest(m, opts)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return E(StageParse, ClassIO, err).WithPath(path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return E(StageParse, ClassIO, err).WithPath(path)
	}
	return nil
}

// MarshalManifest renders the manifest as TOML. Shorthand-expressible
// dependencies serialize back to shorthand so round-trips stay readable.
func MarshalManifest(m *Manifest, opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer

	if m.Package != nil {
		buf.WriteString("[package]\n")
		section, err := toml.Marshal(m.Package)
		if err != nil {
			return nil, E(StageParse, ClassIO, err)
		}
		buf.Write(section)
		buf.WriteString("\n")
	}

	if len(m.Agents) > 0 || opts.KeepEmptySections {
		buf.WriteString("[agents]\n")
		for _, id := range sortedKeys(m.Agents) {
			fmt.Fprintf(&buf, "%s = %t\n", tomlKey(id), m.Agents[id])
		}
		buf.WriteString("\n")
	}

	if len(m.Dependencies) > 0 || opts.KeepEmptySections {
		buf.WriteString("[dependencies]\n")
		for _, alias := range sortedKeys(m.Dependencies) {
			fmt.Fprintf(&buf, "%s = %s\n", tomlKey(alias), serializeDeclaration(m.Dependencies[alias]))
		}
		buf.WriteString("\n")
	}

	if m.Exports != nil {
		buf.WriteString("[exports.auto_discover]\n")
		switch {
		case m.Exports.Disabled:
			buf.WriteString("skills = false\n")
		case m.Exports.SkillsDir != "":
			fmt.Fprintf(&buf, "skills = %q\n", m.Exports.SkillsDir)
		default:
			fmt.Fprintf(&buf, "skills = %q\n", defaultSkillsExport)
		}
	}

	return bytes.TrimLeft(buf.Bytes(), "\n"), nil
}

// serializeDeclaration renders one dependency value, preferring shorthand.
func serializeDeclaration(d Declaration) string {
	switch d.Kind {
	case KindRegistry:
		return fmt.Sprintf("%q", d.Name+"@"+d.Version)
	case KindGitHub:
		if d.Ref.IsZero() && d.Path == "" {
			return fmt.Sprintf("%q", d.Owner+"/"+d.Repo)
		}
		parts := []string{fmt.Sprintf("gh = %q", d.Owner+"/"+d.Repo)}
		parts = append(parts, refParts(d.Ref)...)
		if d.Path != "" {
			parts = append(parts, fmt.Sprintf("path = %q", d.Path))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case KindGit:
		parts := []string{fmt.Sprintf("git = %q", d.URL)}
		parts = append(parts, refParts(d.Ref)...)
		if d.Path != "" {
			parts = append(parts, fmt.Sprintf("path = %q", d.Path))
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case KindLocal:
		return fmt.Sprintf("{ path = %q }", d.Dir)
	case KindClaudePlugin:
		parts := []string{fmt.Sprintf("claude-plugin = %q", d.Plugin+"@"+d.Owner+"/"+d.Repo)}
		parts = append(parts, refParts(d.Ref)...)
		return "{ " + strings.Join(parts, ", ") + " }"
	default:
		return `""`
	}
}

func refParts(r Ref) []string {
	switch {
	case r.Tag != "":
		return []string{fmt.Sprintf("tag = %q", r.Tag)}
	case r.Branch != "":
		return []string{fmt.Sprintf("branch = %q", r.Branch)}
	case r.Commit != "":
		return []string{fmt.Sprintf("rev = %q", r.Commit)}
	}
	return nil
}

// tomlKey renders a map key, quoting it when it is not a bare key.
func tomlKey(key string) string {
	if aliasPattern.MatchString(key) && !strings.Contains(key, ".") {
		return key
	}
	return fmt.Sprintf("%q", key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

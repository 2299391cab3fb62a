package core

import (
	"fmt"
)

// TargetName synthesizes the install target name for a skill. The prefix
// namespace is what prevents cross-package collisions.
func TargetName(prefix, skillName string) string {
	return prefix + "-" + sanitizeName(skillName)
}

// ValidateBatch checks whole-batch invariants after extraction and before
// planning: every package has a non-empty prefix and at least one skill, and
// the synthesized target-name set has no duplicates. In lenient mode a
// violating package is dropped with a warning instead of aborting the batch;
// an empty prefix is always fatal because it indicates a broken manifest,
// not broken package content.
func ValidateBatch(pkgs []*DetectedPackage, mode ExtractMode) ([]*DetectedPackage, []string, error) {
	var kept []*DetectedPackage
	var warnings []string
	targets := map[string]PackageOrigin{} // target name -> declaring origin

	for _, pkg := range pkgs {
		if pkg.Pkg.Prefix == "" {
			return nil, warnings, Ef(StageValidate, ClassValidation,
				"package has empty prefix").WithOrigin(pkg.Pkg.Origin)
		}

		if len(pkg.Skills) == 0 {
			if mode == ModeLenient {
				warnings = append(warnings, fmt.Sprintf(
					"dependency %q contains no skills, skipping", pkg.Pkg.Prefix))
				continue
			}
			return nil, warnings, Ef(StageValidate, ClassValidation,
				"package contains no skills").WithOrigin(pkg.Pkg.Origin)
		}

		conflict := ""
		for _, skill := range pkg.Skills {
			name := TargetName(pkg.Pkg.Prefix, skill.Name)
			if first, dup := targets[name]; dup {
				conflict = fmt.Sprintf(
					"install target %q declared by both %q and %q", name, first.Alias, pkg.Pkg.Origin.Alias)
				break
			}
		}
		if conflict != "" {
			if mode == ModeLenient {
				warnings = append(warnings, conflict+", skipping "+pkg.Pkg.Prefix)
				continue
			}
			return nil, warnings, Ef(StageValidate, ClassValidation, "%s", conflict).WithOrigin(pkg.Pkg.Origin)
		}

		for _, skill := range pkg.Skills {
			targets[TargetName(pkg.Pkg.Prefix, skill.Name)] = pkg.Pkg.Origin
		}
		kept = append(kept, pkg)
	}

	return kept, warnings, nil
}

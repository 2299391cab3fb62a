package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skilldeck/internal/agent"
)

func sourceSkill(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	writeSkill(t, dir, name, "")
	return dir
}

func taskFor(ag agent.Resolved, name, source string, link bool) InstallTask {
	return InstallTask{
		TargetName: name,
		TargetPath: filepath.Join(ag.SkillsDir, name),
		SourcePath: source,
		Link:       link,
	}
}

func TestReconcileInstallsAndRecords(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "alpha")

	res, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-alpha", src, false)}, ReconcileOptions{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Installed != 1 || res.Removed != 0 {
		t.Errorf("result = %+v", res)
	}
	// No prior state: the warning notes that stale removal was skipped.
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	if !fileExists(filepath.Join(ag.SkillsDir, "dep-alpha", SkillFileName)) {
		t.Error("skill not materialized")
	}

	state, err := ReadState(ag.Root)
	if err != nil || state == nil {
		t.Fatalf("state = %v, %v", state, err)
	}
	if len(state.Skills) != 1 || state.Skills[0] != "dep-alpha" {
		t.Errorf("state.Skills = %v", state.Skills)
	}
}

func TestReconcileSymlinkInstall(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "linked")

	if _, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-linked", src, true)}, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(ag.SkillsDir, "dep-linked")
	fi, err := os.Lstat(target)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("target is not a symlink: %s", fi.Mode())
	}
	// Relative link that resolves back to the source.
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatal(err)
	}
	wantDir, _ := filepath.EvalSymlinks(src)
	if resolved != wantDir {
		t.Errorf("symlink resolves to %q, want %q", resolved, wantDir)
	}
}

func TestReconcileRemovesStale(t *testing.T) {
	ag := testAgent(t)
	srcA := sourceSkill(t, "a")
	srcB := sourceSkill(t, "b")

	both := []InstallTask{taskFor(ag, "dep-a", srcA, false), taskFor(ag, "dep-b", srcB, false)}
	if _, err := Reconcile(ag, both, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}

	// Second sync with only dep-a desired: dep-b is stale and removed, dep-a
	// is refreshed in place and not counted again.
	res, err := Reconcile(ag, both[:1], ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Installed != 0 || res.Removed != 1 {
		t.Errorf("result = %+v", res)
	}
	if pathExists(filepath.Join(ag.SkillsDir, "dep-b")) {
		t.Error("stale target not removed")
	}

	state, _ := ReadState(ag.Root)
	if len(state.Skills) != 1 || state.Skills[0] != "dep-a" {
		t.Errorf("state.Skills = %v", state.Skills)
	}
}

func TestReconcileEmptyPlanEmptiesState(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "a")

	if _, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-a", src, false)}, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}

	res, err := Reconcile(ag, nil, ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 {
		t.Errorf("result = %+v", res)
	}
	state, _ := ReadState(ag.Root)
	if state == nil || len(state.Skills) != 0 {
		t.Errorf("state = %+v, want recorded empty set", state)
	}
}

func TestReconcileNeverTouchesUnmanaged(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "a")

	// A user-made directory occupies the desired target name.
	userDir := filepath.Join(ag.SkillsDir, "dep-a")
	writeFile(t, filepath.Join(userDir, "precious.txt"), "user data")
	// State exists but does not list dep-a.
	if err := WriteState(ag.Root, []string{"dep-other"}); err != nil {
		t.Fatal(err)
	}

	_, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-a", src, false)}, ReconcileOptions{})
	if !IsClass(err, ClassConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if !fileExists(filepath.Join(userDir, "precious.txt")) {
		t.Fatal("unmanaged directory was touched")
	}
}

func TestReconcilePreflightBeforeMutation(t *testing.T) {
	ag := testAgent(t)
	srcA := sourceSkill(t, "a")
	srcB := sourceSkill(t, "b")

	// dep-a is properly managed from a prior run.
	if _, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-a", srcA, false)}, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}
	// dep-b exists on disk but unmanaged.
	writeFile(t, filepath.Join(ag.SkillsDir, "dep-b", "user.txt"), "x")

	plan := []InstallTask{taskFor(ag, "dep-a", srcA, false), taskFor(ag, "dep-b", srcB, false)}
	_, err := Reconcile(ag, plan, ReconcileOptions{})
	if !IsClass(err, ClassConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	// The conflict aborted before any mutation: dep-a untouched, state intact.
	if !fileExists(filepath.Join(ag.SkillsDir, "dep-a", SkillFileName)) {
		t.Error("managed target disturbed by failed run")
	}
	state, _ := ReadState(ag.Root)
	if len(state.Skills) != 1 || state.Skills[0] != "dep-a" {
		t.Errorf("state rewritten by failed run: %v", state.Skills)
	}
}

func TestReconcileMissingStateSkipsRemoval(t *testing.T) {
	ag := testAgent(t)

	// An unmanaged skill exists, and no state file.
	writeFile(t, filepath.Join(ag.SkillsDir, "stray", "keep.txt"), "x")

	res, err := Reconcile(ag, nil, ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if !fileExists(filepath.Join(ag.SkillsDir, "stray", "keep.txt")) {
		t.Error("stray skill removed without state authorization")
	}
	// No installs and no prior state: nothing to own, no state written.
	if pathExists(StatePath(ag.Root)) {
		t.Error("state file created for a no-op run")
	}
}

func TestReconcileDryRunMutatesNothing(t *testing.T) {
	ag := testAgent(t)
	srcA := sourceSkill(t, "a")
	srcB := sourceSkill(t, "b")

	if _, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-a", srcA, false)}, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}

	res, err := Reconcile(ag, []InstallTask{taskFor(ag, "dep-b", srcB, false)}, ReconcileOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Installed != 1 || res.Removed != 1 {
		t.Errorf("dry-run counts = %+v", res)
	}

	if pathExists(filepath.Join(ag.SkillsDir, "dep-b")) {
		t.Error("dry run installed something")
	}
	if !fileExists(filepath.Join(ag.SkillsDir, "dep-a", SkillFileName)) {
		t.Error("dry run removed something")
	}
	state, _ := ReadState(ag.Root)
	if len(state.Skills) != 1 || state.Skills[0] != "dep-a" {
		t.Errorf("dry run rewrote state: %v", state.Skills)
	}
}

func TestReconcileRefreshesManagedContent(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "a")
	plan := []InstallTask{taskFor(ag, "dep-a", src, false)}

	if _, err := Reconcile(ag, plan, ReconcileOptions{}); err != nil {
		t.Fatal(err)
	}

	// The source moves on (a ref update, an edited local package); the next
	// reconcile re-applies the managed copy without counting it as new.
	writeFile(t, filepath.Join(src, SkillFileName), "---\nname: a\n---\n\nUpdated.\n")

	res, err := Reconcile(ag, plan, ReconcileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Installed != 0 || res.Removed != 0 {
		t.Errorf("result = %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(ag.SkillsDir, "dep-a", SkillFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Updated.") {
		t.Errorf("installed copy not refreshed: %q", data)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	ag := testAgent(t)
	src := sourceSkill(t, "a")
	plan := []InstallTask{taskFor(ag, "dep-a", src, false)}

	for i := 0; i < 3; i++ {
		res, err := Reconcile(ag, plan, ReconcileOptions{})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		wantInstalled := 0
		if i == 0 {
			wantInstalled = 1
		}
		if res.Installed != wantInstalled || res.Removed != 0 {
			t.Errorf("run %d: %+v, want %d installed", i, res, wantInstalled)
		}
	}
	if !fileExists(filepath.Join(ag.SkillsDir, "dep-a", SkillFileName)) {
		t.Error("skill missing after repeated syncs")
	}
}

package core

import (
	"path/filepath"
	"testing"

	"skilldeck/internal/agent"
)

func testAgent(t *testing.T) agent.Resolved {
	t.Helper()
	root := filepath.Join(t.TempDir(), ".claude")
	return agent.Resolved{
		Def:       agent.Def{ID: "claude-code", Dir: ".claude", SkillsSubdir: "skills"},
		Root:      root,
		SkillsDir: filepath.Join(root, "skills"),
	}
}

func TestBuildPlan(t *testing.T) {
	ag := testAgent(t)

	remote := detectedPkg("remote", "beta", "alpha")
	local := &DetectedPackage{
		Pkg:  ResolvePackage("local", Declaration{Kind: KindLocal, Dir: "/src/skills"}, "/p/skills.toml"),
		Root: "/src/skills",
		Skills: []Skill{
			{Name: "mine", RelPath: "."},
		},
	}

	plan := BuildPlan(ag, []*DetectedPackage{remote, local})
	if len(plan) != 3 {
		t.Fatalf("plan = %+v", plan)
	}

	// Sorted by target name.
	wantNames := []string{"local-mine", "remote-alpha", "remote-beta"}
	for i, want := range wantNames {
		if plan[i].TargetName != want {
			t.Errorf("plan[%d].TargetName = %q, want %q", i, plan[i].TargetName, want)
		}
		if plan[i].TargetPath != filepath.Join(ag.SkillsDir, want) {
			t.Errorf("plan[%d].TargetPath = %q", i, plan[i].TargetPath)
		}
	}

	if !plan[0].Link {
		t.Error("local package must install as symlink")
	}
	if plan[0].SourcePath != "/src/skills" {
		t.Errorf("RelPath \".\" must resolve to the package root: %q", plan[0].SourcePath)
	}

	if plan[1].Link {
		t.Error("cloned package must install as copy")
	}
	if plan[1].SourcePath != filepath.Join(remote.Root, "alpha") {
		t.Errorf("SourcePath = %q", plan[1].SourcePath)
	}
}

func TestBuildPlanEmpty(t *testing.T) {
	if plan := BuildPlan(testAgent(t), nil); len(plan) != 0 {
		t.Errorf("plan = %+v", plan)
	}
}

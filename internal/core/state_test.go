package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	root := t.TempDir()

	if err := WriteState(root, []string{"b-skill", "a-skill", "b-skill"}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}

	state, err := ReadState(root)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if state == nil {
		t.Fatal("state = nil")
	}
	if len(state.Skills) != 2 || state.Skills[0] != "a-skill" || state.Skills[1] != "b-skill" {
		t.Errorf("skills = %v, want sorted unique", state.Skills)
	}
	if state.Version != currentStateVersion {
		t.Errorf("version = %d", state.Version)
	}
	if state.UpdatedAt == "" {
		t.Error("updated_at missing")
	}

	if !state.Has("a-skill") || state.Has("zzz") {
		t.Error("Has lookup broken")
	}
}

func TestReadStateMissing(t *testing.T) {
	state, err := ReadState(t.TempDir())
	if err != nil || state != nil {
		t.Errorf("missing state must be (nil, nil), got (%v, %v)", state, err)
	}
}

func TestReadStateVersionMismatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, StatePath(root), `{"version": 99, "skills": [], "updated_at": "2026-01-01T00:00:00Z"}`)

	_, err := ReadState(root)
	if !IsClass(err, ClassValidation) {
		t.Fatalf("err = %v, want validation error for version mismatch", err)
	}
}

func TestReadStateBadJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, StatePath(root), "{not json")

	if _, err := ReadState(root); !IsClass(err, ClassParse) {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestWriteStateCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", ".claude")
	if err := WriteState(root, nil); err != nil {
		t.Fatalf("WriteState: %v", err)
	}

	data, err := os.ReadFile(StatePath(root))
	if err != nil {
		t.Fatal(err)
	}
	// Empty set serializes as [], not null.
	if got := string(data); !strings.Contains(got, `"skills": []`) {
		t.Errorf("state file:\n%s", got)
	}
}

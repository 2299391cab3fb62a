package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// StateFileName is the per-agent install-state file, stored inside the
	// agent's root directory.
	StateFileName = ".skilldeck-state.json"

	currentStateVersion = 1
)

// AgentInstallState is the persisted record of which install targets
// skilldeck owns inside one agent root. It is the only thing that authorizes
// stale-target removal: entries absent from it are never touched.
type AgentInstallState struct {
	Version   int      `json:"version"`
	Skills    []string `json:"skills"` // sorted, unique managed target names
	UpdatedAt string   `json:"updated_at"`
}

// Has reports whether the target name is managed.
func (s *AgentInstallState) Has(name string) bool {
	idx := sort.SearchStrings(s.Skills, name)
	return idx < len(s.Skills) && s.Skills[idx] == name
}

// StatePath returns the install-state file path for an agent root.
func StatePath(agentRoot string) string {
	return filepath.Join(agentRoot, StateFileName)
}

// ReadState reads an agent's install state. A missing file returns nil, nil:
// it means "no managed history", which disables stale removal rather than
// failing the sync. A version mismatch is a hard error — silently migrating
// would risk removing entries recorded under different semantics.
func ReadState(agentRoot string) (*AgentInstallState, error) {
	path := StatePath(agentRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, E(StageReconcile, ClassIO, err).WithPath(path)
	}

	var state AgentInstallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, E(StageReconcile, ClassParse, err).WithPath(path)
	}
	if state.Version != currentStateVersion {
		return nil, Ef(StageReconcile, ClassValidation,
			"unsupported state version %d (want %d)", state.Version, currentStateVersion).WithPath(path)
	}

	sort.Strings(state.Skills)
	return &state, nil
}

// WriteState persists the managed target set atomically. Skills are sorted
// and deduplicated for deterministic output.
func WriteState(agentRoot string, skills []string) error {
	state := AgentInstallState{
		Version:   currentStateVersion,
		Skills:    dedupSorted(append([]string(nil), skills...)),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if state.Skills == nil {
		state.Skills = []string{}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return E(StageReconcile, ClassIO, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(agentRoot, 0o755); err != nil {
		return E(StageReconcile, ClassIO, err).WithPath(agentRoot)
	}

	path := StatePath(agentRoot)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return E(StageReconcile, ClassIO, err).WithPath(path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return E(StageReconcile, ClassIO, err).WithPath(path)
	}
	return nil
}

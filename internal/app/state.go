package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vk/gridmapper/internal/arch"
	"github.com/vk/gridmapper/internal/mapperr"
	"github.com/vk/gridmapper/internal/mapping"
	"github.com/vk/gridmapper/internal/place"
)

// stateFile is the on-disk form of a resumable run: the annealing state
// plus the placement it was taken from, keyed by name.
type stateFile struct {
	RunID     string            `json:"run_id"`
	Placement map[string]string `json:"placement"`
	State     *place.SAState    `json:"state"`
}

func saveState(path string, m *mapping.Map, s *place.SAState) error {
	sf := stateFile{
		RunID:     m.Metadata.RunID,
		Placement: m.Report().Placement,
		State:     s,
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}

// loadState reads a state file and installs its placement into m.
func loadState(path string, m *mapping.Map) (*place.SAState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, mapperr.NewConfigError("resume", "decoding %s: %v", path, err)
	}
	if sf.State == nil {
		return nil, mapperr.NewConfigError("resume", "%s holds no annealing state", path)
	}

	locs := make([]arch.ResourceID, m.Tasks.NumTasks())
	for _, t := range m.Tasks.Tasks() {
		name, ok := sf.Placement[t.Name]
		if !ok {
			return nil, mapperr.NewConfigError("resume", "task %q missing from saved placement", t.Name)
		}
		id, ok := m.Arch.Lookup(name)
		if !ok {
			return nil, mapperr.NewConfigError("resume", "task %q placed on unknown resource %q", t.Name, name)
		}
		locs[t.ID] = id
	}
	if len(sf.Placement) != len(locs) {
		return nil, mapperr.NewConfigError("resume", "saved placement has %d tasks, task graph has %d", len(sf.Placement), len(locs))
	}
	if err := m.SetPlacement(locs); err != nil {
		return nil, fmt.Errorf("restoring saved placement: %w", err)
	}
	return sf.State, nil
}

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileBackend serializes the state map as one JSON object keyed by
// paper identifier.
type FileBackend struct {
	path string
}

// NewFileBackend persists under the given path, creating parent
// directories on the first save.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the persisted map. Missing or corrupt files yield an empty
// map; persistence problems must never be fatal to the caller.
func (b *FileBackend) Load() (map[string]PaperState, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return map[string]PaperState{}, nil
	}
	var states map[string]PaperState
	if err := json.Unmarshal(data, &states); err != nil || states == nil {
		return map[string]PaperState{}, nil
	}
	return states, nil
}

// Save rewrites the whole map atomically.
func (b *FileBackend) Save(states map[string]PaperState) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// Package store keeps the per-paper working state (scraped content,
// notes, conversation) in a keyed cache persisted in full on every change.
package store

import "sync"

// Role tags one transcript entry.
type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleSuggestions Role = "suggestions"
)

// Message is one turn of a paper's conversation. Ordering is meaningful
// and entries are immutable once appended.
type Message struct {
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Questions []string `json:"questions,omitempty"`
}

// PaperState is the derived working data for one paper identifier.
type PaperState struct {
	ID         string    `json:"id"`
	PDFContent string    `json:"pdfContent"`
	Notes      string    `json:"notes"`
	Messages   []Message `json:"messages"`
}

// Patch is a shallow merge: nil fields leave the current value untouched.
// Callers replacing the conversation pass the full desired slice.
type Patch struct {
	PDFContent *string
	Notes      *string
	Messages   []Message
}

// Backend persists the whole state map. Load errors for missing or
// corrupt data must yield an empty map, not a failure.
type Backend interface {
	Load() (map[string]PaperState, error)
	Save(states map[string]PaperState) error
}

// Store is the process-wide paper-state cache. Every Apply rewrites the
// full persisted map through the backend.
type Store struct {
	mu      sync.Mutex
	states  map[string]PaperState
	backend Backend
}

// Open rehydrates a Store from the backend. A backend that cannot load
// (missing file, corrupt payload) starts the store empty.
func Open(backend Backend) *Store {
	states, err := backend.Load()
	if err != nil || states == nil {
		states = map[string]PaperState{}
	}
	return &Store{states: states, backend: backend}
}

// Get returns the state for id, or a fresh empty state stamped with the
// id when none exists. The result is a copy; mutate via Apply.
func (s *Store) Get(id string) PaperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(id)
}

func (s *Store) snapshot(id string) PaperState {
	state, ok := s.states[id]
	if !ok {
		return PaperState{ID: id, Messages: []Message{}}
	}
	state.Messages = append([]Message(nil), state.Messages...)
	return state
}

// Apply merges the patch into the state for id, re-stamps the id, and
// persists the full map. The returned state reflects the merge.
func (s *Store) Apply(id string, patch Patch) (PaperState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[id]
	state.ID = id
	if patch.PDFContent != nil {
		state.PDFContent = *patch.PDFContent
	}
	if patch.Notes != nil {
		state.Notes = *patch.Notes
	}
	if patch.Messages != nil {
		state.Messages = append([]Message(nil), patch.Messages...)
	}
	s.states[id] = state

	err := s.backend.Save(s.cloneLocked())
	return s.snapshot(id), err
}

// All returns a copy of every stored state, keyed by paper id.
func (s *Store) All() map[string]PaperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) cloneLocked() map[string]PaperState {
	clone := make(map[string]PaperState, len(s.states))
	for id, state := range s.states {
		state.Messages = append([]Message(nil), state.Messages...)
		clone[id] = state
	}
	return clone
}

// String is a convenience for building Patch fields.
func String(v string) *string { return &v }

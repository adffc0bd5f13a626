package store

import (
	"os"
	"path/filepath"
	"testing"
)

type recordingBackend struct {
	loaded map[string]PaperState
	saves  []map[string]PaperState
}

func (b *recordingBackend) Load() (map[string]PaperState, error) {
	return b.loaded, nil
}

func (b *recordingBackend) Save(states map[string]PaperState) error {
	b.saves = append(b.saves, states)
	return nil
}

func TestGetReturnsFreshDefaultState(t *testing.T) {
	t.Parallel()

	s := Open(&recordingBackend{})
	got := s.Get("2401.00001")
	if got.ID != "2401.00001" {
		t.Fatalf("id = %q, want the requested id", got.ID)
	}
	if got.PDFContent != "" || got.Notes != "" || len(got.Messages) != 0 {
		t.Fatalf("expected empty default state, got %+v", got)
	}
}

func TestApplyMergesFieldsIndependently(t *testing.T) {
	t.Parallel()

	s := Open(&recordingBackend{})
	if _, err := s.Apply("p1", Patch{Notes: String("x")}); err != nil {
		t.Fatalf("Apply notes: %v", err)
	}
	if _, err := s.Apply("p1", Patch{PDFContent: String("y")}); err != nil {
		t.Fatalf("Apply content: %v", err)
	}

	got := s.Get("p1")
	if got.Notes != "x" || got.PDFContent != "y" {
		t.Fatalf("merge lost a field: %+v", got)
	}
}

func TestApplyReplacesConversationWholesale(t *testing.T) {
	t.Parallel()

	s := Open(&recordingBackend{})
	first := []Message{{Role: RoleAssistant, Content: "summary"}}
	if _, err := s.Apply("p1", Patch{Messages: first}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second := []Message{
		{Role: RoleAssistant, Content: "summary"},
		{Role: RoleSuggestions, Content: "questions", Questions: []string{"A?"}},
	}
	if _, err := s.Apply("p1", Patch{Messages: second}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.Get("p1"); len(got.Messages) != 2 {
		t.Fatalf("expected wholesale replacement, got %d messages", len(got.Messages))
	}
}

func TestEveryApplyPersistsTheFullMap(t *testing.T) {
	t.Parallel()

	backend := &recordingBackend{}
	s := Open(backend)
	_, _ = s.Apply("a", Patch{Notes: String("na")})
	_, _ = s.Apply("b", Patch{Notes: String("nb")})

	if len(backend.saves) != 2 {
		t.Fatalf("expected 2 full-store saves, got %d", len(backend.saves))
	}
	last := backend.saves[1]
	if len(last) != 2 || last["a"].Notes != "na" || last["b"].Notes != "nb" {
		t.Fatalf("last save should carry the whole map, got %+v", last)
	}
}

func TestGetReturnsACopy(t *testing.T) {
	t.Parallel()

	s := Open(&recordingBackend{})
	_, _ = s.Apply("p", Patch{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	got := s.Get("p")
	got.Messages[0].Content = "mutated"
	if s.Get("p").Messages[0].Content != "q" {
		t.Fatal("Get must not expose internal message storage")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "paper_states.json")
	backend := NewFileBackend(path)

	s := Open(backend)
	_, _ = s.Apply("2401.00001", Patch{
		PDFContent: String("full text"),
		Messages:   []Message{{Role: RoleAssistant, Content: "summary"}},
	})

	reloaded := Open(NewFileBackend(path))
	got := reloaded.Get("2401.00001")
	if got.PDFContent != "full text" || len(got.Messages) != 1 {
		t.Fatalf("round trip lost data: %+v", got)
	}
}

func TestFileBackendTreatsCorruptDataAsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "paper_states.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s := Open(NewFileBackend(path))
	if got := s.Get("x"); got.ID != "x" || got.PDFContent != "" {
		t.Fatalf("corrupt store should start empty, got %+v", got)
	}
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := Open(NewFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if len(s.All()) != 0 {
		t.Fatal("missing file should start empty")
	}
}

func TestPrefsThemeRoundTrip(t *testing.T) {
	t.Parallel()

	prefs := NewPrefs(filepath.Join(t.TempDir(), "prefs.json"))
	if prefs.Theme() != ThemeLight {
		t.Fatal("default theme should be light")
	}
	if err := prefs.SetTheme(ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if prefs.Theme() != ThemeDark {
		t.Fatal("expected persisted dark theme")
	}
}

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Theme is the persisted appearance preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Prefs persists user preferences under their own key, independent of
// the paper-state map.
type Prefs struct {
	path string
}

type prefsPayload struct {
	Theme Theme `json:"theme"`
}

// NewPrefs stores preferences at the given path.
func NewPrefs(path string) *Prefs {
	return &Prefs{path: path}
}

// Theme returns the saved preference, defaulting to light when nothing
// valid is stored.
func (p *Prefs) Theme() Theme {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return ThemeLight
	}
	var payload prefsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ThemeLight
	}
	if strings.TrimSpace(string(payload.Theme)) == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

// SetTheme persists the preference.
func (p *Prefs) SetTheme(theme Theme) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefsPayload{Theme: theme}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

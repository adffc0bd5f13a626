package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps each PaperState as a JSON blob in an embedded
// SQLite database, one row per paper identifier.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS paper_states (
		id    TEXT PRIMARY KEY,
		state TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error { return b.db.Close() }

// Load reads every row. Undecodable rows are skipped so one corrupt
// record never poisons the whole store.
func (b *SQLiteBackend) Load() (map[string]PaperState, error) {
	rows, err := b.db.Query(`SELECT id, state FROM paper_states`)
	if err != nil {
		return map[string]PaperState{}, nil
	}
	defer rows.Close()

	states := map[string]PaperState{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			continue
		}
		var state PaperState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			continue
		}
		states[id] = state
	}
	return states, nil
}

// Save rewrites the full table in one transaction, mirroring the
// whole-map persistence contract of the file backend.
func (b *SQLiteBackend) Save(states map[string]PaperState) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM paper_states`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO paper_states (id, state) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, state := range states {
		raw, err := json.Marshal(state)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

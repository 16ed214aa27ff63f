// Package unread tracks per-contact unread message counts and the
// transient notifications raised for them. Counts survive restarts in a
// local sqlite store.
package unread

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS unread_counts (
    owner_user_id   INTEGER NOT NULL,
    contact_user_id INTEGER NOT NULL,
    count           INTEGER NOT NULL DEFAULT 0,
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (owner_user_id, contact_user_id)
);
`

// Store persists unread counts keyed by (owner, contact). Counts for
// other owners on the same machine are left untouched.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open unread store: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure unread store: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init unread schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Counts loads all non-zero counts for one owner.
func (s *Store) Counts(ownerUserID int64) (map[int64]int, error) {
	rows, err := s.db.Query(
		`SELECT contact_user_id, count FROM unread_counts WHERE owner_user_id = ? AND count > 0`,
		ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var contact int64
		var count int
		if err := rows.Scan(&contact, &count); err != nil {
			return nil, err
		}
		counts[contact] = count
	}
	return counts, rows.Err()
}

// Set writes one count. A zero count removes the row.
func (s *Store) Set(ownerUserID, contactUserID int64, count int) error {
	if count <= 0 {
		_, err := s.db.Exec(
			`DELETE FROM unread_counts WHERE owner_user_id = ? AND contact_user_id = ?`,
			ownerUserID, contactUserID)
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO unread_counts (owner_user_id, contact_user_id, count, updated_at)
         VALUES (?, ?, ?, datetime('now'))
         ON CONFLICT(owner_user_id, contact_user_id)
         DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at`,
		ownerUserID, contactUserID, count)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

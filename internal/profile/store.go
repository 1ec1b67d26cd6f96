package profile

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Profile is the identity carried across sessions: the display name and the
// last joined room, so a restart can resume where it left off.
type Profile struct {
	Username string
	RoomID   string
}

// Store persists one Profile in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the profile database at path and ensures its
// schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure profile db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS profile (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			username   TEXT NOT NULL,
			room_id    TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure profile schema: %w", err)
	}
	return nil
}

// Save upserts the single profile row.
func (s *Store) Save(p Profile) error {
	_, err := s.db.Exec(`
		INSERT INTO profile (id, username, room_id, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username   = excluded.username,
			room_id    = excluded.room_id,
			updated_at = excluded.updated_at
	`, p.Username, p.RoomID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Load returns the stored profile. ok is false when none was saved yet.
func (s *Store) Load() (p Profile, ok bool, err error) {
	row := s.db.QueryRow(`SELECT username, room_id FROM profile WHERE id = 1`)
	if err := row.Scan(&p.Username, &p.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	return p, true, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

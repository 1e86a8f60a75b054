// Package localdb is the device-local save store: one row per character in
// a SQLite database, the payload being an encoded snapshot record.
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"idlerealm.ai/internal/persistence/snapshot"
)

type Store struct {
	db   *sql.DB
	once sync.Once
}

// Entry describes one stored save without decoding it.
type Entry struct {
	UserID      string
	CharacterID string
	LastSaved   time.Time
	Bytes       int
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		// Saves are the only copy on an offline device.
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saves (
			user_id TEXT NOT NULL,
			character_id TEXT NOT NULL,
			last_saved TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (user_id, character_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_last_saved ON saves(last_saved);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

// Save replaces the stored record for the record's character.
func (s *Store) Save(ctx context.Context, rec snapshot.Record) error {
	if rec.Header.UserID == "" || rec.Header.CharacterID == "" {
		return fmt.Errorf("save: missing user or character id")
	}
	payload, err := snapshot.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saves(user_id,character_id,last_saved,payload) VALUES(?,?,?,?)
		 ON CONFLICT(user_id,character_id) DO UPDATE SET last_saved=excluded.last_saved, payload=excluded.payload`,
		rec.Header.UserID, rec.Header.CharacterID, formatTime(rec.Header.LastSaved), payload,
	)
	if err != nil {
		return fmt.Errorf("write save %s/%s: %w", rec.Header.UserID, rec.Header.CharacterID, err)
	}
	return nil
}

// Load returns the stored record, or ok=false when none exists.
func (s *Store) Load(ctx context.Context, userID, characterID string) (rec snapshot.Record, ok bool, err error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM saves WHERE user_id=? AND character_id=?`, userID, characterID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, false, nil
		}
		return rec, false, err
	}
	rec, err = snapshot.Decode(payload)
	if err != nil {
		return rec, false, fmt.Errorf("decode save %s/%s: %w", userID, characterID, err)
	}
	return rec, true, nil
}

// Clear deletes a character's save and reports whether one existed.
func (s *Store) Clear(ctx context.Context, userID, characterID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE user_id=? AND character_id=?`, userID, characterID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns every stored save ordered by user then character.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id,character_id,last_saved,length(payload) FROM saves ORDER BY user_id,character_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.UserID, &e.CharacterID, &ts, &e.Bytes); err != nil {
			return nil, err
		}
		e.LastSaved, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

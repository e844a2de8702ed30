// Package storage provides the key/value persistence wrapper backing the
// auth and task stores. Values are JSON-encoded under fixed keys in a
// SQLite database. Read/write errors are logged and swallowed so callers
// always see either a value or "absent", never a failure.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store is a JSON key/value store over SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) a SQLite database at dbPath and ensures the kv
// table exists. The caller is responsible for calling Close.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Set JSON-encodes v and upserts it under key. Errors are logged, not
// returned; a failed Set leaves any previous value in place.
func (s *Store) Set(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("storage set: marshal", slog.String("key", key), slog.Any("err", err))
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("storage set", slog.String("key", key), slog.Any("err", err))
	}
}

// Get decodes the value under key into out and reports whether a value was
// present. Absent keys and decode/read errors both report false.
func (s *Store) Get(key string, out any) bool {
	return s.get(key, 0, out)
}

// GetFresh is Get with a maximum age: entries written longer than maxAge
// ago are treated as absent and deleted.
func (s *Store) GetFresh(key string, maxAge time.Duration, out any) bool {
	return s.get(key, maxAge, out)
}

func (s *Store) get(key string, maxAge time.Duration, out any) bool {
	var value string
	var updatedAt time.Time
	err := s.db.QueryRow(`SELECT value, updated_at FROM kv WHERE key = ?`, key).
		Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		s.logger.Error("storage get", slog.String("key", key), slog.Any("err", err))
		return false
	}
	if maxAge > 0 && time.Since(updatedAt) > maxAge {
		s.Remove(key)
		return false
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		s.logger.Error("storage get: unmarshal", slog.String("key", key), slog.Any("err", err))
		return false
	}
	return true
}

// Remove deletes the value under key. Best-effort; errors are logged.
func (s *Store) Remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		s.logger.Error("storage remove", slog.String("key", key), slog.Any("err", err))
	}
}

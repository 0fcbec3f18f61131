package draft

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultSQLitePath is used when OpenSQLite is given an empty path.
const DefaultSQLitePath = "activitypg-drafts.db"

// SQLiteStore is a durable Store backed by a single SQLite table. Failures
// are logged and swallowed.
type SQLiteStore struct {
	db     *sql.DB
	logger Logger
}

// OpenSQLite opens or creates the draft database at path.
func OpenSQLite(path string, logger Logger) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("draft: create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("draft: open sqlite: %w", err)
	}
	// One connection keeps writes in call order.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("draft: create drafts table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(key string) (string, bool) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM drafts WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("draft read failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

func (s *SQLiteStore) Set(key, value string) {
	_, err := s.db.Exec(`INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		s.logger.Debug("draft write failed", "key", key, "error", err)
	}
}

func (s *SQLiteStore) Remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM drafts WHERE key = ?`, key); err != nil {
		s.logger.Debug("draft remove failed", "key", key, "error", err)
	}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)

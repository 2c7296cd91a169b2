package correlation

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a Store backed by a local SQLite database, for deployments
// that want correlation state to survive restarts without running Redis.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS correlation_entries (
	key            TEXT PRIMARY KEY,
	channel        TEXT NOT NULL,
	thread_anchor  TEXT NOT NULL,
	placeholder_ts TEXT NOT NULL,
	subject_url    TEXT NOT NULL
)`

// NewSQLiteStore opens (creating if necessary) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create correlation table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put stores an entry under its key.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO correlation_entries (key, channel, thread_anchor, placeholder_ts, subject_url)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Key, entry.Channel, entry.ThreadAnchor, entry.PlaceholderTS, entry.SubjectURL)
	if err != nil {
		return fmt.Errorf("failed to store correlation entry: %w", err)
	}
	return nil
}

// Get returns the entry for key, if live.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, channel, thread_anchor, placeholder_ts, subject_url
		 FROM correlation_entries WHERE key = ?`, key)

	var entry Entry
	err := row.Scan(&entry.Key, &entry.Channel, &entry.ThreadAnchor, &entry.PlaceholderTS, &entry.SubjectURL)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read correlation entry: %w", err)
	}
	return entry, true, nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM correlation_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete correlation entry: %w", err)
	}
	return nil
}

// FirstKey returns the oldest live key by insertion order.
func (s *SQLiteStore) FirstKey(ctx context.Context) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key FROM correlation_entries ORDER BY rowid LIMIT 1`)

	var key string
	err := row.Scan(&key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read first correlation key: %w", err)
	}
	return key, true, nil
}

var _ Store = (*SQLiteStore)(nil)

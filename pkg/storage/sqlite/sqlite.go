// Package sqlite is a reference storage.Adapter backed by
// modernc.org/sqlite: mutex-guarded single-writer access over a single
// key/value table, with a busy timeout so concurrent opens don't
// immediately fail on SQLITE_BUSY.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/terraphim-labs/roleforge/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Adapter implements storage.Adapter against a single SQLite database
// file (or ":memory:"). Writes are serialized by mu rather than relying
// on SQLite's own locking semantics across goroutines in this process.
type Adapter struct {
	db *sql.DB
	mu sync.Mutex
}

var _ storage.Adapter = (*Adapter)(nil)

// Open opens (creating if necessary) a SQLite-backed Adapter at dsn.
func Open(dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Adapter{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Read implements storage.Adapter.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := a.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read %q: %w", key, err)
	}
	return value, nil
}

// Write implements storage.Adapter.
func (a *Adapter) Write(ctx context.Context, key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite: write %q: %w", key, err)
	}
	return nil
}

// Package history provides the SQLite-backed build log: past build
// cycles and the fragment checksums they were built from. It powers
// status reporting and gives future incremental builds something to
// diff against.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	format         TEXT NOT NULL,
	artifact       TEXT NOT NULL DEFAULT '',
	success        INTEGER NOT NULL DEFAULT 0,
	diagnostics    TEXT NOT NULL DEFAULT '',
	fragment_count INTEGER NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_builds_format ON builds(format);

CREATE TABLE IF NOT EXISTS fragments (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with build-log operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Log defines the build-log operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing.
type Log interface {
	RecordBuild(rec BuildRecord) error
	LastBuild(format string) (*BuildRecord, error)
	RecentBuilds(limit int) ([]BuildRecord, error)
	UpsertFragment(path, checksum string) error
	DeleteFragment(path string) error
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies Log at compile time.
var _ Log = (*DB)(nil)

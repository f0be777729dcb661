// Package index provides the SQLite-backed export manifest: what the latest
// run wrote and how its links resolved.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	start       TEXT NOT NULL,
	vault       TEXT NOT NULL,
	convention  TEXT NOT NULL,
	files       INTEGER NOT NULL DEFAULT 0,
	links       INTEGER NOT NULL DEFAULT 0,
	broken      INTEGER NOT NULL DEFAULT 0,
	finished_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
	path     TEXT PRIMARY KEY,
	kind     TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	size     INTEGER NOT NULL DEFAULT 0,
	run_id   INTEGER NOT NULL REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS links (
	seq      INTEGER NOT NULL,
	source   TEXT NOT NULL,
	raw      TEXT NOT NULL,
	target   TEXT NOT NULL DEFAULT '',
	syntax   TEXT NOT NULL,
	external INTEGER NOT NULL DEFAULT 0,
	resolved INTEGER NOT NULL DEFAULT 0,
	run_id   INTEGER NOT NULL REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
`

// DB wraps a sql.DB with manifest operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

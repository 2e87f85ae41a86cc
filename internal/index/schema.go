// Package index keeps a SQLite summary of the stored plots for listing,
// filtering and search, with optional FTS5 full-text search.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS plots (
	path            TEXT PRIMARY KEY,
	plot_id         INTEGER NOT NULL DEFAULT 0,
	title           TEXT NOT NULL DEFAULT '',
	checksum        TEXT NOT NULL DEFAULT '',
	has_tree        INTEGER NOT NULL DEFAULT 0,
	pending         INTEGER NOT NULL DEFAULT 0,
	pending_keys    TEXT NOT NULL DEFAULT '[]',
	common_name     TEXT NOT NULL DEFAULT '',
	scientific_name TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL DEFAULT '',
	keywords        TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_plots_plot_id ON plots(plot_id);
CREATE INDEX IF NOT EXISTS idx_plots_pending ON plots(pending);
`

// DB wraps a sql.DB with plot index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext checks that the database is still reachable.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Package graph provides the SQLite-backed structured note store: metadata,
// tag index, and the directed link graph, plus delegated title search.
package graph

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	note_id     TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	frontmatter TEXT NOT NULL DEFAULT '{}',
	body        TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	tag     TEXT NOT NULL,
	note_id TEXT NOT NULL,
	UNIQUE(tag, note_id)
);

CREATE TABLE IF NOT EXISTS links (
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source, target)
);

CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tags_tag      ON tags(tag);
CREATE INDEX IF NOT EXISTS idx_tags_note     ON tags(note_id);
CREATE INDEX IF NOT EXISTS idx_links_source  ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target  ON links(target);
`

// Store wraps a sql.DB with note graph operations. Reads are safe under
// concurrency (WAL journal); writes are expected to be serialized per note
// by the ingestion layer.
type Store struct {
	conn   *sql.DB
	titles TitleSearcher
}

// Open opens (or creates) the SQLite database and applies the schema.
// titles may be nil, in which case SearchTitles returns no results.
func Open(dsn string, titles TitleSearcher) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: apply schema: %w", err)
	}
	return &Store{conn: conn, titles: titles}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

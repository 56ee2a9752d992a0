package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// NoteStore defines the read/write surface of the note graph. Consumers
// should depend on this interface rather than the concrete *Store to
// facilitate testing with fakes.
type NoteStore interface {
	Upsert(ctx context.Context, note models.Note, body string) error
	Delete(ctx context.Context, noteID string) error
	Get(ctx context.Context, noteID string) (*models.Note, error)
	Content(ctx context.Context, noteID string) (string, error)
	FindByTag(ctx context.Context, tag string) ([]models.Note, error)
	OutgoingLinks(ctx context.Context, noteID string) ([]models.Note, error)
	Backlinks(ctx context.Context, noteID string) ([]models.Note, error)
	SearchTitles(ctx context.Context, query string, limit int) ([]ScoredNote, error)
	AllIDs(ctx context.Context) (map[string]struct{}, error)
}

// Verify *Store satisfies NoteStore at compile time.
var _ NoteStore = (*Store)(nil)

// Upsert inserts or replaces a note, its tag rows, and its link rows within
// a single transaction. Prior tag/link rows for the same note_id are removed
// first, so repeated upserts of an unchanged note are idempotent. The body
// is the plain-text content served by read operations.
func (s *Store) Upsert(ctx context.Context, note models.Note, body string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fmJSON, err := json.Marshal(note.Frontmatter)
	if err != nil {
		return fmt.Errorf("graph: marshal frontmatter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (note_id, title, frontmatter, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			title       = excluded.title,
			frontmatter = excluded.frontmatter,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, note.NoteID, note.Title, string(fmJSON), body, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("graph: upsert note: %w", err)
	}

	// Replace tag rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE note_id = ?`, note.NoteID); err != nil {
		return fmt.Errorf("graph: clear tags: %w", err)
	}
	for _, tag := range note.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (tag, note_id) VALUES (?, ?)`, tag, note.NoteID); err != nil {
			return fmt.Errorf("graph: insert tag: %w", err)
		}
	}

	// Replace link rows, preserving source order via position.
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, note.NoteID); err != nil {
		return fmt.Errorf("graph: clear links: %w", err)
	}
	for i, target := range note.Links {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO links (source, target, position) VALUES (?, ?, ?)`,
			note.NoteID, target, i); err != nil {
			return fmt.Errorf("graph: insert link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("graph: commit: %w", err)
	}

	// The graph rows are committed; a failed title index leaves at worst a
	// stale or missing entry, which SearchTitles already tolerates and the
	// next upsert repairs. Do not fail the write for it.
	if s.titles != nil {
		if err := s.titles.Index(ctx, note.NoteID, note.Title); err != nil {
			slog.Warn("graph: title index failed",
				slog.String("note_id", note.NoteID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Delete removes a note, its tag rows, and its outgoing links. Inbound links
// from other notes stay; they become dangling and traversal omits them.
func (s *Store) Delete(ctx context.Context, noteID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.ExecContext(ctx, `DELETE FROM tags WHERE note_id = ?`, noteID)
	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, noteID)
	_, _ = tx.ExecContext(ctx, `DELETE FROM notes WHERE note_id = ?`, noteID)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("graph: commit delete: %w", err)
	}

	if s.titles != nil {
		s.titles.Remove(noteID)
	}
	return nil
}

// Get returns the note's structured metadata, or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, noteID string) (*models.Note, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT note_id, title, frontmatter, created_at, updated_at
		FROM notes WHERE note_id = ?`, noteID)

	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("graph: get %s: %w", noteID, err)
	}
	if err := s.attachTagsAndLinks(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Content returns the plain-text body of a note, or apperr.ErrNotFound.
func (s *Store) Content(ctx context.Context, noteID string) (string, error) {
	var body string
	err := s.conn.QueryRowContext(ctx,
		`SELECT body FROM notes WHERE note_id = ?`, noteID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("graph: content %s: %w", noteID, err)
	}
	return body, nil
}

// FindByTag returns all notes carrying the tag, most recently updated first.
// An unknown tag yields an empty slice, not an error.
func (s *Store) FindByTag(ctx context.Context, tag string) ([]models.Note, error) {
	return s.queryNotes(ctx, `
		SELECT n.note_id, n.title, n.frontmatter, n.created_at, n.updated_at
		FROM tags t JOIN notes n ON n.note_id = t.note_id
		WHERE t.tag = ?
		ORDER BY n.updated_at DESC, n.note_id`, tag)
}

// OutgoingLinks returns the one-hop link targets of a note in source order.
// Dangling targets (not yet indexed) are silently omitted by the join.
func (s *Store) OutgoingLinks(ctx context.Context, noteID string) ([]models.Note, error) {
	return s.queryNotes(ctx, `
		SELECT n.note_id, n.title, n.frontmatter, n.created_at, n.updated_at
		FROM links l JOIN notes n ON n.note_id = l.target
		WHERE l.source = ?
		ORDER BY l.position`, noteID)
}

// Backlinks returns all notes whose outgoing links include noteID,
// most recently updated first.
func (s *Store) Backlinks(ctx context.Context, noteID string) ([]models.Note, error) {
	return s.queryNotes(ctx, `
		SELECT n.note_id, n.title, n.frontmatter, n.created_at, n.updated_at
		FROM links l JOIN notes n ON n.note_id = l.source
		WHERE l.target = ?
		ORDER BY n.updated_at DESC, n.note_id`, noteID)
}

// AllIDs returns every indexed note ID, for sync reconciliation.
func (s *Store) AllIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT note_id FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("graph: all ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: query notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("graph: scan note: %w", err)
		}
		out = append(out, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.attachTagsAndLinks(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (*models.Note, error) {
	var n models.Note
	var fmJSON string
	if err := r.Scan(&n.NoteID, &n.Title, &fmJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if fmJSON != "" && fmJSON != "{}" && fmJSON != "null" {
		if err := json.Unmarshal([]byte(fmJSON), &n.Frontmatter); err != nil {
			return nil, fmt.Errorf("frontmatter decode: %w", err)
		}
	}
	return &n, nil
}

func (s *Store) attachTagsAndLinks(ctx context.Context, n *models.Note) error {
	tags, err := s.stringColumn(ctx,
		`SELECT tag FROM tags WHERE note_id = ? ORDER BY tag`, n.NoteID)
	if err != nil {
		return fmt.Errorf("graph: tags for %s: %w", n.NoteID, err)
	}
	links, err := s.stringColumn(ctx,
		`SELECT target FROM links WHERE source = ? ORDER BY position`, n.NoteID)
	if err != nil {
		return fmt.Errorf("graph: links for %s: %w", n.NoteID, err)
	}
	n.Tags, n.Links = tags, links
	return nil
}

func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

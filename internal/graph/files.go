package graph

import (
	"context"
	"fmt"

	"github.com/starford/ansuz/internal/models"
)

// RecordFile remembers the checksum of an ingested vault file, so the next
// sync can skip files that have not changed.
func (s *Store) RecordFile(ctx context.Context, f models.VaultFile) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO files (path, checksum, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum, updated_at = excluded.updated_at`,
		f.Path, f.Checksum, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("graph: record file %s: %w", f.Path, err)
	}
	return nil
}

// DeleteFile forgets a vault file's checksum.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("graph: delete file %s: %w", path, err)
	}
	return nil
}

// Checksums returns the checksum of every recorded vault file, keyed by path.
func (s *Store) Checksums(ctx context.Context) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("graph: checksums: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var path, sum string
		if err := rows.Scan(&path, &sum); err != nil {
			return nil, fmt.Errorf("graph: scan checksum: %w", err)
		}
		out[path] = sum
	}
	return out, rows.Err()
}

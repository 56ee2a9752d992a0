package ingest

import (
	"context"
	"log/slog"

	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the vault and brings the stores up to date:
//   - new/changed files are parsed, upserted, and re-embedded
//   - files removed from disk are deleted everywhere
//
// Unchanged files are skipped by checksum, so repeated syncs cost no
// embedding calls.
func (in *Ingester) Sync(ctx context.Context, vault storage.Provider) error {
	metas, err := vault.List("")
	if err != nil {
		return err
	}

	known, err := in.store.Checksums(ctx)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if known[m.Path] == m.Checksum {
			continue
		}

		data, err := vault.Read(m.Path)
		if err != nil {
			in.log.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := in.IngestFile(ctx, m.Path, data); err != nil {
			in.log.Warn("sync: ingest failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			in.log.Debug("sync: ingested", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range known {
		if _, ok := disk[p]; !ok {
			if err := in.Remove(ctx, p); err != nil {
				in.log.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				in.log.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// Package ingest turns vault Markdown files into graph rows and vector
// collection entries, and keeps both in step with the file system.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/vecstore"
)

// GraphStore is the slice of the note store ingestion writes through.
type GraphStore interface {
	Upsert(ctx context.Context, note models.Note, body string) error
	Delete(ctx context.Context, noteID string) error
	RecordFile(ctx context.Context, f models.VaultFile) error
	DeleteFile(ctx context.Context, path string) error
	Checksums(ctx context.Context) (map[string]string, error)
}

// ChunkIndex is the slice of the vector index ingestion writes through.
type ChunkIndex interface {
	Upsert(ctx context.Context, collection, itemID, text string, payload any) error
	RemovePrefix(collection, prefix string)
}

type chunkPayload struct {
	DocID string `json:"doc_id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Ingester writes parsed vault files into the graph store and the chunk
// collection of the vector index.
type Ingester struct {
	store  GraphStore
	chunks ChunkIndex
	log    *slog.Logger
}

// New creates an ingester. chunks may be nil to skip chunk embedding.
func New(store GraphStore, chunks ChunkIndex, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: store, chunks: chunks, log: logger}
}

// IngestFile parses one vault file and upserts the note, its title
// embedding (via the store's title searcher), and its body chunks. The
// stored body is plain text with Markdown syntax stripped.
func (in *Ingester) IngestFile(ctx context.Context, path string, data []byte) error {
	res, err := parser.Parse(path, data)
	if err != nil {
		return fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	plain := parser.PlainText(res.Body)

	now := time.Now().UTC()
	note := models.Note{
		NoteID:      res.NoteID,
		Title:       res.Title,
		Tags:        res.Tags,
		Links:       res.Links,
		Frontmatter: res.Frontmatter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := in.store.Upsert(ctx, note, plain); err != nil {
		return fmt.Errorf("ingest: upsert %s: %w", path, err)
	}

	if in.chunks != nil {
		in.chunks.RemovePrefix(vecstore.DocumentCollection, res.NoteID+"#")
		for seq, text := range chunkText(plain) {
			id := fmt.Sprintf("%s#%d", res.NoteID, seq)
			payload := chunkPayload{DocID: res.NoteID, Title: res.Title, Text: text}
			if err := in.chunks.Upsert(ctx, vecstore.DocumentCollection, id, text, payload); err != nil {
				return fmt.Errorf("ingest: embed chunk %s: %w", id, err)
			}
		}
	}

	return in.store.RecordFile(ctx, models.VaultFile{
		Path:      path,
		Checksum:  checksum.File(data),
		UpdatedAt: now,
	})
}

// Remove deletes everything derived from a vault file: the note row, its
// chunks, and the checksum record.
func (in *Ingester) Remove(ctx context.Context, path string) error {
	noteID := parser.NoteID(path)
	if err := in.store.Delete(ctx, noteID); err != nil {
		return fmt.Errorf("ingest: delete %s: %w", noteID, err)
	}
	if in.chunks != nil {
		in.chunks.RemovePrefix(vecstore.DocumentCollection, noteID+"#")
	}
	return in.store.DeleteFile(ctx, path)
}

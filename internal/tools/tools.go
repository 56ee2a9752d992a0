// Package tools implements the canonical retrieval tool set: pure reads
// bridging the tool registry to the note graph store and the vector index.
// Traversal tools are strictly one hop; multi-hop exploration happens only
// through the LLM issuing further calls across iterations.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/toolreg"
	"github.com/starford/ansuz/internal/vecstore"
)

// MaxTitleResults caps search_notes_by_title; larger requested limits are
// clamped, not rejected.
const MaxTitleResults = 20

const defaultLimit = 5

// ChunkSearcher is the vector-index collaborator behind search_pdf_chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, collection, query string, limit int) ([]vecstore.Hit, error)
}

// Register adds the canonical retrieval tools to the registry in their
// stable prompt order.
func Register(reg *toolreg.Registry, store graph.NoteStore, chunks ChunkSearcher) {
	reg.Register(toolreg.Schema{
		Name:        "search_notes_by_title",
		Description: "Search notes by title using semantic similarity. Use this first to locate notes relevant to a topic.",
		Params: []toolreg.Param{
			{Name: "query", Type: toolreg.TypeString, Description: "Search query", Required: true},
			{Name: "limit", Type: toolreg.TypeInteger, Description: "Maximum results (default 5, max 20)"},
		},
	}, searchNotesByTitle(store))

	reg.Register(toolreg.Schema{
		Name:        "get_note_metadata",
		Description: "Get tags, links, and frontmatter for a note by its note_id.",
		Params: []toolreg.Param{
			{Name: "note_id", Type: toolreg.TypeString, Description: "Note identifier", Required: true},
		},
	}, getNoteMetadata(store))

	reg.Register(toolreg.Schema{
		Name:        "get_notes_by_tag",
		Description: "List all notes carrying a tag. Use when the user mentions a tag or category.",
		Params: []toolreg.Param{
			{Name: "tag", Type: toolreg.TypeString, Description: "Tag name", Required: true},
		},
	}, getNotesByTag(store))

	reg.Register(toolreg.Schema{
		Name:        "get_linked_notes",
		Description: "Get the notes a given note links to (one hop). Call again on the results to go further.",
		Params: []toolreg.Param{
			{Name: "note_id", Type: toolreg.TypeString, Description: "Source note identifier", Required: true},
		},
	}, linkedNotes(store, false))

	reg.Register(toolreg.Schema{
		Name:        "get_backlinks",
		Description: "Get the notes that link to a given note (one hop).",
		Params: []toolreg.Param{
			{Name: "note_id", Type: toolreg.TypeString, Description: "Target note identifier", Required: true},
		},
	}, linkedNotes(store, true))

	reg.Register(toolreg.Schema{
		Name:        "read_note_content",
		Description: "Read the full plain-text content of a note.",
		Params: []toolreg.Param{
			{Name: "note_id", Type: toolreg.TypeString, Description: "Note identifier", Required: true},
		},
	}, readNoteContent(store))

	reg.Register(toolreg.Schema{
		Name:        "search_pdf_chunks",
		Description: "Search ingested document chunks by vector similarity. Use as a fallback when the notes do not cover the question.",
		Params: []toolreg.Param{
			{Name: "query", Type: toolreg.TypeString, Description: "Search query", Required: true},
			{Name: "limit", Type: toolreg.TypeInteger, Description: "Maximum results (default 5)"},
		},
	}, searchChunks(chunks))
}

type titleHit struct {
	NoteID string  `json:"note_id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

func searchNotesByTitle(store graph.NoteStore) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		limit := args.Int("limit", defaultLimit)
		if limit > MaxTitleResults {
			limit = MaxTitleResults
		}
		if limit < 1 {
			limit = 1
		}

		hits, err := store.SearchTitles(ctx, args.String("query"), limit)
		if err != nil {
			return nil, err
		}

		results := make([]titleHit, len(hits))
		sources := make([]toolreg.Source, len(hits))
		for i, h := range hits {
			results[i] = titleHit{NoteID: h.Note.NoteID, Title: h.Note.Title, Score: h.Score}
			sources[i] = noteSource(h.Note.Title, h.Note.NoteID)
		}
		return &toolreg.ToolResult{
			Payload: map[string]any{"results": results},
			Sources: sources,
		}, nil
	}
}

func getNoteMetadata(store graph.NoteStore) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		note, err := store.Get(ctx, args.String("note_id"))
		if err != nil {
			return nil, err
		}
		return &toolreg.ToolResult{
			Payload: map[string]any{
				"note_id":     note.NoteID,
				"title":       note.Title,
				"tags":        note.Tags,
				"links":       note.Links,
				"frontmatter": note.Frontmatter,
				"created_at":  note.CreatedAt.Format(time.RFC3339),
				"updated_at":  note.UpdatedAt.Format(time.RFC3339),
			},
			Sources: []toolreg.Source{noteSource(note.Title, note.NoteID)},
		}, nil
	}
}

type noteSummary struct {
	NoteID string   `json:"note_id"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
}

func getNotesByTag(store graph.NoteStore) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		notes, err := store.FindByTag(ctx, args.String("tag"))
		if err != nil {
			return nil, err
		}
		return summariesResult(notes), nil
	}
}

func linkedNotes(store graph.NoteStore, inbound bool) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		hop := store.OutgoingLinks
		if inbound {
			hop = store.Backlinks
		}
		found, err := hop(ctx, args.String("note_id"))
		if err != nil {
			return nil, err
		}
		return summariesResult(found), nil
	}
}

func readNoteContent(store graph.NoteStore) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		id := args.String("note_id")
		note, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		body, err := store.Content(ctx, id)
		if err != nil {
			return nil, err
		}
		return &toolreg.ToolResult{
			Payload: map[string]any{
				"note_id": note.NoteID,
				"title":   note.Title,
				"content": body,
			},
			Sources: []toolreg.Source{noteSource(note.Title, note.NoteID)},
		}, nil
	}
}

type chunkHit struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

func searchChunks(chunks ChunkSearcher) toolreg.Handler {
	return func(ctx context.Context, args toolreg.Args) (*toolreg.ToolResult, error) {
		limit := args.Int("limit", defaultLimit)
		hits, err := chunks.Search(ctx, vecstore.DocumentCollection, args.String("query"), limit)
		if err != nil {
			return nil, err
		}

		results := make([]chunkHit, 0, len(hits))
		sources := make([]toolreg.Source, 0, len(hits))
		for _, h := range hits {
			var payload struct {
				DocID string `json:"doc_id"`
				Title string `json:"title"`
				Text  string `json:"text"`
			}
			if len(h.Payload) > 0 {
				_ = json.Unmarshal(h.Payload, &payload)
			}
			results = append(results, chunkHit{
				ChunkID: h.ID,
				DocID:   payload.DocID,
				Title:   payload.Title,
				Text:    payload.Text,
				Score:   h.Score,
			})
			sources = append(sources, toolreg.Source{
				Title:   payload.Title,
				Kind:    "document",
				Locator: h.ID,
			})
		}
		return &toolreg.ToolResult{
			Payload: map[string]any{"chunks": results},
			Sources: sources,
		}, nil
	}
}

func summariesResult(notes []models.Note) *toolreg.ToolResult {
	summaries := make([]noteSummary, len(notes))
	sources := make([]toolreg.Source, len(notes))
	for i, n := range notes {
		summaries[i] = noteSummary{NoteID: n.NoteID, Title: n.Title, Tags: n.Tags}
		sources[i] = noteSource(n.Title, n.NoteID)
	}
	return &toolreg.ToolResult{
		Payload: map[string]any{"notes": summaries},
		Sources: sources,
	}
}

func noteSource(title, noteID string) toolreg.Source {
	return toolreg.Source{Title: title, Kind: "note", Locator: noteID}
}

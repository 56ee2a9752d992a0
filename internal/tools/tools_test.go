package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/toolreg"
	"github.com/starford/ansuz/internal/vecstore"
)

// fakeStore is an in-memory NoteStore for tool contract tests.
type fakeStore struct {
	notes  map[string]models.Note
	bodies map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: map[string]models.Note{}, bodies: map[string]string{}}
}

func (f *fakeStore) add(n models.Note, body string) {
	f.notes[n.NoteID] = n
	f.bodies[n.NoteID] = body
}

func (f *fakeStore) Upsert(_ context.Context, n models.Note, body string) error {
	f.add(n, body)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.notes, id)
	delete(f.bodies, id)
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.Note, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	return &n, nil
}

func (f *fakeStore) Content(_ context.Context, id string) (string, error) {
	b, ok := f.bodies[id]
	if !ok {
		return "", fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
	}
	return b, nil
}

func (f *fakeStore) FindByTag(_ context.Context, tag string) ([]models.Note, error) {
	out := []models.Note{}
	for _, n := range f.notes {
		for _, t := range n.Tags {
			if t == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) OutgoingLinks(_ context.Context, id string) ([]models.Note, error) {
	src, ok := f.notes[id]
	if !ok {
		return []models.Note{}, nil
	}
	out := []models.Note{}
	for _, target := range src.Links {
		if n, ok := f.notes[target]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) Backlinks(_ context.Context, id string) ([]models.Note, error) {
	out := []models.Note{}
	for _, n := range f.notes {
		for _, target := range n.Links {
			if target == id {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SearchTitles(_ context.Context, query string, limit int) ([]graph.ScoredNote, error) {
	out := []graph.ScoredNote{}
	for _, n := range f.notes {
		out = append(out, graph.ScoredNote{Note: n, Score: 0.5})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) AllIDs(context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for id := range f.notes {
		out[id] = struct{}{}
	}
	return out, nil
}

type fakeChunks struct {
	hits     []vecstore.Hit
	lastMax  int
	lastColl string
}

func (f *fakeChunks) Search(_ context.Context, collection, _ string, limit int) ([]vecstore.Hit, error) {
	f.lastColl = collection
	f.lastMax = limit
	return f.hits, nil
}

func testRegistry(t *testing.T, store graph.NoteStore, chunks ChunkSearcher) *toolreg.Registry {
	t.Helper()
	reg := toolreg.New(time.Second)
	Register(reg, store, chunks)
	return reg
}

func dispatch(t *testing.T, reg *toolreg.Registry, name, args string) toolreg.ToolResult {
	t.Helper()
	return reg.Dispatch(context.Background(), name, json.RawMessage(args))
}

func TestCanonicalToolOrder(t *testing.T) {
	reg := testRegistry(t, newFakeStore(), &fakeChunks{})
	var names []string
	for _, s := range reg.Schemas() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"search_notes_by_title",
		"get_note_metadata",
		"get_notes_by_tag",
		"get_linked_notes",
		"get_backlinks",
		"read_note_content",
		"search_pdf_chunks",
	}, names)
}

func TestGetNoteMetadata(t *testing.T) {
	store := newFakeStore()
	store.add(models.Note{
		NoteID:      "n1",
		Title:       "Note One",
		Tags:        []string{"a"},
		Links:       []string{"n2"},
		Frontmatter: map[string]string{"author": "me"},
	}, "body")
	reg := testRegistry(t, store, &fakeChunks{})

	res := dispatch(t, reg, "get_note_metadata", `{"note_id":"n1"}`)
	require.Nil(t, res.Err)
	payload := res.Payload.(map[string]any)
	assert.Equal(t, "Note One", payload["title"])
	assert.Equal(t, []string{"a"}, payload["tags"])
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "note", res.Sources[0].Kind)
	assert.Equal(t, "n1", res.Sources[0].Locator)
}

func TestGetNoteMetadata_NotFound(t *testing.T) {
	reg := testRegistry(t, newFakeStore(), &fakeChunks{})
	res := dispatch(t, reg, "get_note_metadata", `{"note_id":"ghost"}`)
	require.NotNil(t, res.Err)
	assert.Equal(t, toolreg.CodeNotFound, res.Err.Code)
}

func TestLinkedNotesAndBacklinks_OneHop(t *testing.T) {
	store := newFakeStore()
	store.add(models.Note{NoteID: "a", Title: "A", Links: []string{"b"}}, "")
	store.add(models.Note{NoteID: "b", Title: "B", Links: []string{"c"}}, "")
	store.add(models.Note{NoteID: "c", Title: "C"}, "")
	reg := testRegistry(t, store, &fakeChunks{})

	res := dispatch(t, reg, "get_linked_notes", `{"note_id":"a"}`)
	require.Nil(t, res.Err)
	notes := res.Payload.(map[string]any)["notes"].([]noteSummary)
	// Exactly one hop: a→b, never a→b→c.
	require.Len(t, notes, 1)
	assert.Equal(t, "b", notes[0].NoteID)

	res = dispatch(t, reg, "get_backlinks", `{"note_id":"b"}`)
	require.Nil(t, res.Err)
	notes = res.Payload.(map[string]any)["notes"].([]noteSummary)
	require.Len(t, notes, 1)
	assert.Equal(t, "a", notes[0].NoteID)
}

func TestReadNoteContent(t *testing.T) {
	store := newFakeStore()
	store.add(models.Note{NoteID: "n", Title: "N"}, "plain text body")
	reg := testRegistry(t, store, &fakeChunks{})

	res := dispatch(t, reg, "read_note_content", `{"note_id":"n"}`)
	require.Nil(t, res.Err)
	assert.Equal(t, "plain text body", res.Payload.(map[string]any)["content"])
}

func TestSearchNotesByTitle_LimitClamped(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 30; i++ {
		store.add(models.Note{NoteID: fmt.Sprintf("n%d", i), Title: "T"}, "")
	}
	reg := testRegistry(t, store, &fakeChunks{})

	res := dispatch(t, reg, "search_notes_by_title", `{"query":"T","limit":100}`)
	require.Nil(t, res.Err)
	results := res.Payload.(map[string]any)["results"].([]titleHit)
	assert.LessOrEqual(t, len(results), MaxTitleResults)
}

func TestSearchPDFChunks(t *testing.T) {
	chunks := &fakeChunks{hits: []vecstore.Hit{
		{ID: "doc1#0", Score: 0.9, Payload: json.RawMessage(`{"doc_id":"doc1","title":"Paper","text":"chunk text"}`)},
	}}
	reg := testRegistry(t, newFakeStore(), chunks)

	res := dispatch(t, reg, "search_pdf_chunks", `{"query":"q","limit":3}`)
	require.Nil(t, res.Err)
	assert.Equal(t, vecstore.DocumentCollection, chunks.lastColl)
	assert.Equal(t, 3, chunks.lastMax)

	out := res.Payload.(map[string]any)["chunks"].([]chunkHit)
	require.Len(t, out, 1)
	assert.Equal(t, "doc1", out[0].DocID)
	assert.Equal(t, "chunk text", out[0].Text)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "document", res.Sources[0].Kind)
}

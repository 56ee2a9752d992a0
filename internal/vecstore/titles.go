package vecstore

import (
	"context"
	"encoding/json"

	"github.com/starford/ansuz/internal/graph"
)

// Collection names used across the system.
const (
	// TitleCollection holds one embedding per note title.
	TitleCollection = "note_titles"
	// DocumentCollection holds one embedding per body chunk.
	DocumentCollection = "doc_chunks"
)

type titlePayload struct {
	Title string `json:"title"`
}

// TitleIndex adapts the vector index to the graph store's TitleSearcher
// contract. Unchanged titles are not re-embedded.
type TitleIndex struct {
	ix *Index
}

// NewTitleIndex wraps ix as a TitleSearcher.
func NewTitleIndex(ix *Index) *TitleIndex {
	return &TitleIndex{ix: ix}
}

// Index embeds and stores the title vector for a note. A repeated call with
// the same title is a no-op, so re-indexing an unchanged vault costs no
// embedding traffic.
func (t *TitleIndex) Index(ctx context.Context, noteID, title string) error {
	if raw, ok := t.ix.Payload(TitleCollection, noteID); ok {
		var prev titlePayload
		if json.Unmarshal(raw, &prev) == nil && prev.Title == title {
			return nil
		}
	}
	return t.ix.Upsert(ctx, TitleCollection, noteID, title, titlePayload{Title: title})
}

// Remove drops a note's title vector.
func (t *TitleIndex) Remove(noteID string) {
	t.ix.Remove(TitleCollection, noteID)
}

// Search returns note IDs ranked by title similarity to the query.
func (t *TitleIndex) Search(ctx context.Context, query string, limit int) ([]graph.ScoredID, error) {
	hits, err := t.ix.Search(ctx, TitleCollection, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]graph.ScoredID, len(hits))
	for i, h := range hits {
		out[i] = graph.ScoredID{NoteID: h.ID, Score: h.Score}
	}
	return out, nil
}

// Verify the adapter satisfies the store's contract.
var _ graph.TitleSearcher = (*TitleIndex)(nil)

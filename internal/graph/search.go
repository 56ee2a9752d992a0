package graph

import (
	"context"
	"errors"
	"sort"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// TitleSearcher is the delegated title-embedding similarity collaborator.
// The store keeps it current on upsert/delete and queries it for ranking;
// the vector math itself lives outside the graph layer.
type TitleSearcher interface {
	Index(ctx context.Context, noteID, title string) error
	Remove(noteID string)
	Search(ctx context.Context, query string, limit int) ([]ScoredID, error)
}

// ScoredID pairs a note ID with a similarity score.
type ScoredID struct {
	NoteID string
	Score  float64
}

// ScoredNote pairs a resolved note with its title similarity score.
type ScoredNote struct {
	Note  models.Note
	Score float64
}

// SearchTitles ranks notes by title similarity to the query, descending
// score with ties broken by most recent update. IDs the searcher still
// holds but the store no longer knows are dropped.
func (s *Store) SearchTitles(ctx context.Context, query string, limit int) ([]ScoredNote, error) {
	if s.titles == nil || limit <= 0 {
		return []ScoredNote{}, nil
	}

	hits, err := s.titles.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredNote, 0, len(hits))
	for _, hit := range hits {
		note, err := s.Get(ctx, hit.NoteID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue // stale searcher entry
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredNote{Note: *note, Score: hit.Score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Note.UpdatedAt.After(out[j].Note.UpdatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

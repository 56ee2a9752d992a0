package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
)

// Runner executes one agent run per question.
type Runner interface {
	Run(ctx context.Context, question string) (*agent.Result, error)
}

// Handler holds API route handlers.
type Handler struct {
	store  graph.NoteStore
	runner Runner
}

// NewHandler creates a new Handler.
func NewHandler(store graph.NoteStore, runner Runner) *Handler {
	return &Handler{store: store, runner: runner}
}

// noteID extracts the note ID from a query parameter. IDs embed slashes
// (they mirror vault paths), so a path segment cannot carry them.
func noteID(r *http.Request) string {
	return r.URL.Query().Get("id")
}

// Query handles POST /api/query: one full agent run.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.runner.Run(r.Context(), req.Question)
	if err != nil {
		slog.Error("query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "agent run failed")
		return
	}

	resp := QueryResponse{
		RunID:       res.RunID,
		Answer:      res.Answer,
		Sources:     res.Sources,
		Iterations:  res.Iterations,
		Termination: res.Termination,
	}
	if r.URL.Query().Get("transcript") == "1" {
		resp.Transcript = res.Transcript
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNote handles GET /api/note?id=...
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	note, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetNoteContent handles GET /api/note/content?id=...
func (h *Handler) GetNoteContent(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	content, err := h.store.Content(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get content failed", slog.String("id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"note_id": id, "content": content})
}

// GetNoteLinks handles GET /api/note/links?id=... (outgoing, one hop).
func (h *Handler) GetNoteLinks(w http.ResponseWriter, r *http.Request) {
	h.hop(w, r, h.store.OutgoingLinks)
}

// GetNoteBacklinks handles GET /api/note/backlinks?id=... (inbound, one hop).
func (h *Handler) GetNoteBacklinks(w http.ResponseWriter, r *http.Request) {
	h.hop(w, r, h.store.Backlinks)
}

func (h *Handler) hop(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) ([]models.Note, error)) {
	id := noteID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	notes, err := fn(r.Context(), id)
	if err != nil {
		slog.Error("link lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": summarize(notes)})
}

// GetNotesByTag handles GET /api/tag/{tag}.
func (h *Handler) GetNotesByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	notes, err := h.store.FindByTag(r.Context(), tag)
	if err != nil {
		slog.Error("tag lookup failed", slog.String("tag", tag), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": summarize(notes)})
}

// Search handles GET /api/search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	hits, err := h.store.SearchTitles(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{NoteID: hit.Note.NoteID, Title: hit.Note.Title, Score: hit.Score}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

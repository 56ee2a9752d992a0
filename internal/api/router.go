package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/graph"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(store graph.NoteStore, runner Runner, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(store, runner)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Agent.
	r.Post("/query", h.Query)

	// Note reads. IDs ride in ?id= because they contain slashes.
	r.Get("/note", h.GetNote)
	r.Get("/note/content", h.GetNoteContent)
	r.Get("/note/links", h.GetNoteLinks)
	r.Get("/note/backlinks", h.GetNoteBacklinks)

	// Tag and title search.
	r.Get("/tag/{tag}", h.GetNotesByTag)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

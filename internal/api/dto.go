package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/toolreg"
)

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// Validate checks the request body.
func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.Required, validation.Length(1, 4000)),
	)
}

// QueryResponse wraps one agent run. The transcript is omitted unless the
// client asks for it with ?transcript=1.
type QueryResponse struct {
	RunID       string           `json:"run_id"`
	Answer      string           `json:"answer"`
	Sources     []toolreg.Source `json:"sources"`
	Iterations  int              `json:"iterations"`
	Termination string           `json:"termination"`
	Transcript  []agent.Turn     `json:"transcript,omitempty"`
}

// NoteSummary is a lightweight note in list responses.
type NoteSummary struct {
	NoteID string   `json:"note_id"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
}

func summarize(notes []models.Note) []NoteSummary {
	out := make([]NoteSummary, len(notes))
	for i, n := range notes {
		out[i] = NoteSummary{NoteID: n.NoteID, Title: n.Title, Tags: n.Tags}
	}
	return out
}

// SearchResult is a single title search hit.
type SearchResult struct {
	NoteID string  `json:"note_id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
}

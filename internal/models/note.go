// Package models defines the domain types for Ansuz.
package models

import "time"

// Note is the structured view of a single vault note held by the graph store.
// The plain-text body is stored alongside but not carried here; metadata only.
type Note struct {
	NoteID      string            `json:"note_id"`
	Title       string            `json:"title"`
	Tags        []string          `json:"tags"`
	Links       []string          `json:"links"` // outgoing targets in source order
	Frontmatter map[string]string `json:"frontmatter,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// VaultFile is a lightweight listing entry produced by the storage provider.
type VaultFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

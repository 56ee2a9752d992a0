// Package storage defines the vault file-system abstraction. Ingestion is
// strictly read-only over the vault; nothing here mutates user files.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for vault file access.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.VaultFile, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Root returns the absolute vault root, for watcher registration.
	Root() string
}

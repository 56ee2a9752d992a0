// Package testutil provides shared test helpers for setting up vaults and stores.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/storage"
)

// TestGraphStore creates a temporary SQLite-backed graph store that is
// automatically cleaned up. titles may be nil.
func TestGraphStore(t *testing.T, titles graph.TitleSearcher) *graph.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := graph.Open(dbFile.Name(), titles)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

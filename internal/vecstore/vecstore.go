// Package vecstore provides exact cosine-similarity search over named
// collections of embeddings, persisted in SQLite and served from memory.
package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/embedding"
)

const vectorSchemaSQL = `
CREATE TABLE IF NOT EXISTS vectors (
	collection TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	dims       INTEGER NOT NULL,
	payload    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (collection, item_id)
);
`

// Hit is one similarity search result.
type Hit struct {
	ID      string
	Score   float64
	Payload json.RawMessage
}

type item struct {
	vec     []float32 // normalized, so dot product equals cosine similarity
	payload json.RawMessage
}

// Index stores normalized embeddings per collection. Texts are embedded via
// the configured Embedder on both write and query paths.
type Index struct {
	conn     *sql.DB
	embedder embedding.Embedder

	mu          sync.RWMutex
	collections map[string]map[string]item
}

// Open opens (or creates) the vector store at dsn and loads all persisted
// vectors into memory.
func Open(dsn string, embedder embedding.Embedder) (*Index, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("vecstore: open db: %w", err)
	}
	if _, err := conn.Exec(vectorSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vecstore: apply schema: %w", err)
	}

	ix := &Index{
		conn:        conn,
		embedder:    embedder,
		collections: make(map[string]map[string]item),
	}
	if err := ix.loadAll(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vecstore: load: %w", err)
	}
	return ix, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.conn.Close()
}

func (ix *Index) loadAll() error {
	rows, err := ix.conn.Query(`SELECT collection, item_id, embedding, dims, payload FROM vectors`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var coll, id, payload string
		var blob []byte
		var dims int
		if err := rows.Scan(&coll, &id, &blob, &dims, &payload); err != nil {
			return err
		}
		ix.put(coll, id, item{vec: blobToVec(blob, dims), payload: json.RawMessage(payload)})
	}
	return rows.Err()
}

func (ix *Index) put(coll, id string, it item) {
	m, ok := ix.collections[coll]
	if !ok {
		m = make(map[string]item)
		ix.collections[coll] = m
	}
	m[id] = it
}

// Upsert embeds text and stores the normalized vector with an optional
// JSON-serializable payload under (collection, itemID).
func (ix *Index) Upsert(ctx context.Context, collection, itemID, text string, payload any) error {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	normalized := normalize(vec)

	var payloadJSON []byte
	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vecstore: marshal payload: %w", err)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, err = ix.conn.ExecContext(ctx, `
		INSERT INTO vectors (collection, item_id, embedding, dims, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, item_id) DO UPDATE SET
			embedding = excluded.embedding,
			dims      = excluded.dims,
			payload   = excluded.payload
	`, collection, itemID, vecToBlob(normalized), len(normalized), string(payloadJSON))
	if err != nil {
		return fmt.Errorf("vecstore: upsert %s/%s: %w", collection, itemID, err)
	}

	ix.put(collection, itemID, item{vec: normalized, payload: payloadJSON})
	return nil
}

// Remove deletes an item from a collection. Missing items are a no-op.
func (ix *Index) Remove(collection, itemID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, _ = ix.conn.Exec(`DELETE FROM vectors WHERE collection = ? AND item_id = ?`, collection, itemID)
	if m, ok := ix.collections[collection]; ok {
		delete(m, itemID)
	}
}

// RemovePrefix deletes every item in a collection whose ID starts with
// prefix. Used to drop all chunks of a removed document.
func (ix *Index) RemovePrefix(collection, prefix string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, _ = ix.conn.Exec(`DELETE FROM vectors WHERE collection = ? AND item_id LIKE ?`,
		collection, prefix+"%")
	if m, ok := ix.collections[collection]; ok {
		for id := range m {
			if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
				delete(m, id)
			}
		}
	}
}

// Payload returns the stored payload for an item and whether it exists.
func (ix *Index) Payload(collection, itemID string) (json.RawMessage, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	it, ok := ix.collections[collection][itemID]
	if !ok {
		return nil, false
	}
	return it.payload, true
}

// Search embeds the query and returns the top-K items of the collection by
// cosine similarity, descending. An unknown collection yields no hits.
func (ix *Index) Search(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	qvec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	normalized := normalize(qvec)

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.collections[collection]))
	for id, it := range ix.collections[collection] {
		if len(it.vec) != len(normalized) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: dot(normalized, it.vec), Payload: it.payload})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vecToBlob(vec []float32) []byte {
	blob := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func blobToVec(blob []byte, dims int) []float32 {
	vec := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(blob); i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// Package kb implements the knowledge base: markdown domain documents
// (schema notes, metric definitions, playbook snippets) embedded into a
// SQLite store and retrieved by cosine similarity to ground the synthesizer
// and narrator prompts.
package kb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DocumentMetadata identifies where a KB document came from.
type DocumentMetadata struct {
	RelativePath string `json:"relative_path"`
	Category     string `json:"category"`
}

// ContextDocument is one retrieved snippet of domain knowledge, consumed
// only as prompt material.
type ContextDocument struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// Store persists KB documents and their embeddings in SQLite.
//
// With the default pure-Go driver, search fetches candidate embeddings and
// ranks by cosine similarity in process. When built with the sqlite_vec tag
// the mattn driver and the sqlite-vec extension take over and ranking
// happens inside SQLite (see store_vec.go).
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenStore opens (or creates) the KB store at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create kb directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kb store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		relative_path TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create kb schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces one document with its embedding.
func (s *Store) Upsert(ctx context.Context, doc ContextDocument, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (relative_path, category, content, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET
			category = excluded.category,
			content = excluded.content,
			embedding = excluded.embedding
	`, doc.Metadata.RelativePath, doc.Metadata.Category, doc.Text, encodeEmbedding(embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Metadata.RelativePath, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Search returns the topK documents most similar to the query embedding,
// ordered by descending cosine similarity.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ContextDocument, error) {
	if topK <= 0 {
		topK = 5
	}
	if vecSearchAvailable {
		return s.vecSearch(ctx, queryEmbedding, topK)
	}
	return s.scanSearch(ctx, queryEmbedding, topK)
}

// scanSearch ranks all documents in process. The KB is a few dozen short
// markdown files, so a full scan is well within budget.
func (s *Store) scanSearch(ctx context.Context, queryEmbedding []float32, topK int) ([]ContextDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT relative_path, category, content, embedding FROM documents")
	if err != nil {
		return nil, fmt.Errorf("kb search failed: %w", err)
	}
	defer rows.Close()

	type scored struct {
		doc ContextDocument
		sim float64
	}
	var candidates []scored
	for rows.Next() {
		var doc ContextDocument
		var blob []byte
		if err := rows.Scan(&doc.Metadata.RelativePath, &doc.Metadata.Category, &doc.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.Metadata.RelativePath, err)
		}
		candidates = append(candidates, scored{doc: doc, sim: cosineSimilarity(queryEmbedding, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	docs := make([]ContextDocument, len(candidates))
	for i, c := range candidates {
		docs[i] = c.doc
	}
	return docs, nil
}

// encodeEmbedding packs a vector as little-endian float32 bytes, the layout
// sqlite-vec expects for BLOB vectors.
func encodeEmbedding(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		// Should never happen with bytes.Buffer
		return nil
	}
	return buf.Bytes()
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("malformed embedding blob (%d bytes)", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vec, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

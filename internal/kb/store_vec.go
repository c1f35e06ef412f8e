//go:build sqlite_vec && cgo

package kb

import (
	"context"
	"fmt"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

const vecSearchAvailable = true

func init() {
	// Register sqlite-vec as an auto-loadable extension for the
	// mattn/go-sqlite3 driver so vec_distance_cosine is usable in SQL.
	vec.Auto()
}

// vecSearch ranks documents inside SQLite using sqlite-vec's cosine
// distance over the stored embedding blobs.
func (s *Store) vecSearch(ctx context.Context, queryEmbedding []float32, topK int) ([]ContextDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT relative_path, category, content,
		       vec_distance_cosine(embedding, ?) AS distance
		FROM documents
		ORDER BY distance ASC
		LIMIT ?
	`, encodeEmbedding(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("kb vector search failed: %w", err)
	}
	defer rows.Close()

	var docs []ContextDocument
	for rows.Next() {
		var doc ContextDocument
		var distance float64
		if err := rows.Scan(&doc.Metadata.RelativePath, &doc.Metadata.Category, &doc.Text, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

//go:build !(sqlite_vec && cgo)

package kb

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const vecSearchAvailable = false

func (s *Store) vecSearch(ctx context.Context, queryEmbedding []float32, topK int) ([]ContextDocument, error) {
	return nil, fmt.Errorf("sqlite-vec search not compiled in; rebuild with -tags sqlite_vec")
}

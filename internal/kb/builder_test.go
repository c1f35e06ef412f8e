package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine hashes text length into a tiny deterministic vector.
type fakeEngine struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEngine) Dimensions() int { return 2 }
func (e *fakeEngine) Name() string    { return "fake" }

func writeKBDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"schema_docs/orders.md":        "# Orders table\nOne row per order item.",
		"metric_definitions/otd.md":    "# On-time delivery\nMean of the on_time_delivery flag.",
		"business_playbook/late.md":    "# Late shipments\nEscalate carriers with repeat delays.",
		"business_playbook/ignore.txt": "not markdown",
	}
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestBuildIndexesMarkdownWithCategories(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	engine := &fakeEngine{}

	count, err := Build(ctx, writeKBDir(t), store, engine, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "only markdown files are indexed")
	assert.Equal(t, 3, engine.calls)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := store.Search(ctx, []float32{1, 1}, 3)
	require.NoError(t, err)
	categories := make(map[string]string, len(docs))
	for _, d := range docs {
		categories[d.Metadata.RelativePath] = d.Metadata.Category
	}
	assert.Equal(t, "schema_docs", categories["schema_docs/orders.md"])
	assert.Equal(t, "metric_definitions", categories["metric_definitions/otd.md"])
	assert.Equal(t, "business_playbook", categories["business_playbook/late.md"])
}

func TestBuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	dir := writeKBDir(t)

	_, err := Build(ctx, dir, store, &fakeEngine{}, nil)
	require.NoError(t, err)
	_, err = Build(ctx, dir, store, &fakeEngine{}, nil)
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBuildEmptyDirectory(t *testing.T) {
	store := openTestStore(t)
	count, err := Build(context.Background(), t.TempDir(), store, &fakeEngine{}, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBuildEmbeddingFailure(t *testing.T) {
	store := openTestStore(t)
	engine := &fakeEngine{err: fmt.Errorf("backend down")}

	_, err := Build(context.Background(), writeKBDir(t), store, engine, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

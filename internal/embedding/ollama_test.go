package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbed(t *testing.T) {
	var got ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "")
	require.NoError(t, err)

	vec, err := engine.Embed(context.Background(), "order table")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, "all-minilm", got.Model)
	assert.Equal(t, "order table", got.Prompt)
	assert.Equal(t, "ollama:all-minilm", engine.Name())
}

func TestOllamaEmbedBatchIsSequential(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(prompts))}})
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "all-minilm")
	require.NoError(t, err)

	vecs, err := engine.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, prompts)
}

func TestOllamaEmbedHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusNotFound)
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "")
	require.NoError(t, err)

	_, err = engine.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestNewEngineProviderSelection(t *testing.T) {
	engine, err := NewEngine(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, 384, engine.Dimensions())

	_, err = NewEngine(Config{Provider: "word2vec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported embedding provider")
}

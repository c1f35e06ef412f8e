package kb

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"insightweaver/internal/embedding"
)

// RetrievalError means the context lookup itself failed (store missing or
// unreachable, embedding backend down). It is surfaced, never silently
// swallowed; an empty result set is not an error.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("context retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Retriever answers "give me the topK most relevant context documents for
// this query". The store and embedding engine are initialized lazily on
// first use and memoized for the process lifetime.
type Retriever struct {
	storePath string
	engineCfg embedding.Config
	logger    *zap.Logger

	once   sync.Once
	store  *Store
	engine embedding.Engine
	err    error
}

// NewRetriever creates a retriever over the store at storePath. Nothing is
// opened until the first Retrieve call.
func NewRetriever(storePath string, engineCfg embedding.Config, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{storePath: storePath, engineCfg: engineCfg, logger: logger}
}

func (r *Retriever) init() {
	if _, err := os.Stat(r.storePath); err != nil {
		r.err = fmt.Errorf("kb store not found at %s (run `weaver kb build`): %w", r.storePath, err)
		return
	}
	store, err := OpenStore(r.storePath)
	if err != nil {
		r.err = err
		return
	}
	engine, err := embedding.NewEngine(r.engineCfg)
	if err != nil {
		store.Close()
		r.err = err
		return
	}
	r.store = store
	r.engine = engine
	r.logger.Info("kb retriever initialized",
		zap.String("store", r.storePath),
		zap.String("engine", engine.Name()))
}

// Retrieve returns up to topK context documents relevant to the query,
// ordered by descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextDocument, error) {
	r.once.Do(r.init)
	if r.err != nil {
		return nil, &RetrievalError{Err: r.err}
	}

	queryEmbedding, err := r.engine.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Err: fmt.Errorf("failed to embed query: %w", err)}
	}

	docs, err := r.store.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	return docs, nil
}

// Close releases the underlying store if it was opened.
func (r *Retriever) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

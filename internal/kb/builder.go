package kb

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"insightweaver/internal/embedding"
)

// embedConcurrency bounds parallel embedding calls during a build so a
// local Ollama server is not flooded.
const embedConcurrency = 4

// Build walks kbDir for markdown files, embeds each document, and upserts
// them into the store. The category of a document is the name of its parent
// directory (schema_docs, metric_definitions, business_playbook).
// Returns the number of documents indexed.
func Build(ctx context.Context, kbDir string, store *Store, engine embedding.Engine, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var docs []ContextDocument
	err := filepath.WalkDir(kbDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(kbDir, path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		docs = append(docs, ContextDocument{
			Text: string(text),
			Metadata: DocumentMetadata{
				RelativePath: filepath.ToSlash(rel),
				Category:     filepath.Base(filepath.Dir(path)),
			},
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk kb directory %s: %w", kbDir, err)
	}
	if len(docs) == 0 {
		logger.Warn("no markdown files found in kb directory", zap.String("dir", kbDir))
		return 0, nil
	}

	logger.Info("embedding kb documents",
		zap.Int("documents", len(docs)),
		zap.String("engine", engine.Name()))

	embeddings := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range docs {
		g.Go(func() error {
			emb, err := engine.Embed(gctx, docs[i].Text)
			if err != nil {
				return fmt.Errorf("failed to embed %s: %w", docs[i].Metadata.RelativePath, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i, doc := range docs {
		if err := store.Upsert(ctx, doc, embeddings[i]); err != nil {
			return 0, err
		}
	}

	logger.Info("kb store built", zap.Int("documents", len(docs)))
	return len(docs), nil
}

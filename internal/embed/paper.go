// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// sectionWorkers bounds concurrent section batches.
const sectionWorkers = 4

// EncodePaper embeds a paper's title, abstract and sections. Missing titles
// and abstracts leave their vectors nil; sections are embedded as
// "<title> <content>" in batches of batchSize.
func EncodePaper(ctx context.Context, e Embedder, paper *types.ParsedPaper, batchSize int) (*types.PaperEmbeddings, error) {
	out := &types.PaperEmbeddings{}

	if paper.Metadata.Title != "" {
		vec, err := EmbedOne(ctx, e, FormatTitle(paper.Metadata.Title))
		if err != nil {
			return nil, fmt.Errorf("embedding title: %w", err)
		}
		out.Title = vec
	}
	if paper.Metadata.Abstract != "" {
		vec, err := EmbedOne(ctx, e, FormatAbstract(paper.Metadata.Abstract))
		if err != nil {
			return nil, fmt.Errorf("embedding abstract: %w", err)
		}
		out.Abstract = vec
	}
	if len(paper.Sections) == 0 {
		return out, nil
	}

	if batchSize <= 0 {
		batchSize = 16
	}
	texts := make([]string, len(paper.Sections))
	for i, s := range paper.Sections {
		texts[i] = s.Title + " " + s.Content
	}
	out.Sections = make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sectionWorkers)
	for start := 0; start < len(texts); start += batchSize {
		start, end := start, min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding sections %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding sections %d-%d: got %d vectors", start, end, len(vecs))
			}
			copy(out.Sections[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FromConfig builds the configured embedder, wrapped in a cache when
// caching is enabled. Redis is used when an address is configured and
// answers a ping; otherwise vectors are cached in memory.
func FromConfig(ctx context.Context, models types.ModelConfig, db types.DatabaseConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var e Embedder
	switch models.EmbeddingBackend {
	case types.EmbeddingHash, "":
		e = NewHashEmbedder(models.EmbeddingDim, models.MaxLength)
	case types.EmbeddingOllama:
		e = NewOllamaEmbedder(OllamaConfig{
			URL:        models.EmbeddingURL,
			Model:      models.ScientificEmbeddings,
			Dimension:  models.EmbeddingDim,
			BatchSize:  models.BatchSize,
			Timeout:    models.Timeout,
			UserAgent:  models.UserAgent,
			MaxRetries: models.QA.MaxRetries,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", models.EmbeddingBackend)
	}

	if !db.CacheEnabled {
		return e, nil
	}
	if db.RedisAddr != "" {
		rc := NewRedisCache(db.RedisAddr, db.RedisPassword, db.RedisDB, db.CacheTTL)
		err := rc.Ping(ctx)
		if err == nil {
			logger.Info("embedding cache", zap.String("backend", "redis"), zap.String("addr", db.RedisAddr))
			return NewCachedEmbedder(e, rc, logger), nil
		}
		logger.Warn("redis unavailable, caching embeddings in memory", zap.Error(err))
		rc.Close()
	}
	return NewCachedEmbedder(e, NewMemoryCache(db.CacheTTL), logger), nil
}

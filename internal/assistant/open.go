// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/internal/enrich"
	"github.com/pdiddy/research-assistant/internal/fetch"
	"github.com/pdiddy/research-assistant/internal/parser"
	"github.com/pdiddy/research-assistant/internal/qa"
	"github.com/pdiddy/research-assistant/internal/store"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Open builds every component from cfg and returns a ready Assistant.
// Metrics are registered with reg when it is not nil.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger, reg prometheus.Registerer) (*Assistant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	selector, err := convert.NewSelector(ctx, cfg.Processing.Extractor)
	if err != nil {
		return nil, fmt.Errorf("setting up %s extractor: %w", cfg.Processing.Extractor, err)
	}
	p, err := parser.New(cfg.Processing, cfg.Research.SectionPatterns, selector, logger.Named("parser"))
	if err != nil {
		return nil, err
	}

	embedder, err := embed.FromConfig(ctx, cfg.Models, cfg.Database, logger.Named("embed"))
	if err != nil {
		return nil, err
	}
	model, err := qa.ModelFromConfig(cfg.Models)
	if err != nil {
		return nil, err
	}
	answerer := qa.New(model, cfg.Research.MaxContextLength, logger.Named("qa"))

	st, err := store.Open(cfg.Database.MetadataDBPath, cfg.Database.MaxResults)
	if err != nil {
		return nil, err
	}
	index, err := OpenIndex(ctx, cfg.Database)
	if err != nil {
		st.Close()
		return nil, err
	}
	arch, err := archive.FromConfig(ctx, cfg.Archive, cfg.Processing.UploadDir)
	if err != nil {
		index.Close()
		st.Close()
		return nil, err
	}

	deps := Deps{
		Parser:   p,
		Embedder: embedder,
		QA:       answerer,
		Store:    st,
		Index:    index,
		Archive:  arch,
		Fetcher: fetch.New(&http.Client{Timeout: cfg.Models.Timeout}, cfg.Processing.UploadDir,
			cfg.Models.UserAgent, cfg.Research.OpenAlexEmail, logger.Named("fetch")),
		Metrics: NewMetrics(reg),
		Logger:  logger,
	}
	if cfg.Research.EnrichMetadata {
		deps.Enricher = enrich.New(cfg.Research, cfg.Models.HTTPConfig, logger.Named("enrich"))
	}

	a, err := New(ctx, cfg, deps)
	if err != nil {
		index.Close()
		st.Close()
		return nil, err
	}
	if c, ok := embedder.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	return a, nil
}

// OpenIndex returns the configured vector index.
func OpenIndex(ctx context.Context, db types.DatabaseConfig) (vector.Index, error) {
	switch db.VectorDBType {
	case types.VectorSQLite, "":
		return vector.OpenSQLite(ctx, db.VectorDBPath)
	case types.VectorMemory:
		return vector.NewMemoryIndex(), nil
	case types.VectorWeaviate:
		return vector.NewWeaviate(vector.WeaviateConfig{
			URL:        db.WeaviateURL,
			APIKey:     db.WeaviateAPIKey,
			Collection: db.CollectionName,
		})
	default:
		return nil, fmt.Errorf("unknown vector database type %q", db.VectorDBType)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assistant ties parsing, embedding, question answering and storage
// together behind the operations the CLI and the REST API expose.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/internal/fetch"
	"github.com/pdiddy/research-assistant/internal/qa"
	"github.com/pdiddy/research-assistant/internal/store"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	// ErrPaperNotFound is returned for paper ids the library does not hold.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrTooFewPapers is returned when a comparison names fewer than two papers.
	ErrTooFewPapers = errors.New("need at least 2 papers to compare")
	// ErrInvalidAnalysisType is returned for analysis types other than
	// contribution, methodology and results.
	ErrInvalidAnalysisType = errors.New("invalid analysis type")
	// ErrFetchDisabled is returned by Fetch when no fetcher is configured.
	ErrFetchDisabled = errors.New("fetching papers is not configured")
)

var tracer = otel.Tracer("github.com/pdiddy/research-assistant/internal/assistant")

// Parser turns a file into a parsed paper.
type Parser interface {
	Parse(ctx context.Context, path string) (*types.ParsedPaper, error)
	Supported(path string) bool
}

// Enricher fills missing metadata from external services.
type Enricher interface {
	Enrich(ctx context.Context, paper *types.ParsedPaper) bool
}

// Fetcher downloads a paper by identifier.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (fetch.Result, error)
}

// Deps are the components an Assistant coordinates. Parser, Embedder, QA,
// Store and Index are required.
type Deps struct {
	Parser   Parser
	Embedder embed.Embedder
	QA       *qa.Answerer
	Store    *store.Store
	Index    vector.Index

	Archive  archive.Archive
	Enricher Enricher
	Fetcher  Fetcher
	Metrics  *Metrics
	Logger   *zap.Logger
}

// Assistant manages a library of parsed papers. It is safe for concurrent use.
type Assistant struct {
	parser   Parser
	embedder embed.Embedder
	qa       *qa.Answerer
	store    *store.Store
	index    vector.Index
	archive  archive.Archive
	enricher Enricher
	fetcher  Fetcher
	metrics  *Metrics
	logger   *zap.Logger

	processedDir  string
	batchSize     int
	minSectionLen int
	threshold     float64
	watchDebounce time.Duration
	searchDefault int
	closers       []func() error

	mu     sync.RWMutex
	papers map[string]*types.ParsedPaper

	now   func() time.Time
	newID func() string
}

// New builds an Assistant and restores the papers already in the store.
func New(ctx context.Context, cfg types.Config, deps Deps) (*Assistant, error) {
	if deps.Parser == nil || deps.Embedder == nil || deps.QA == nil || deps.Store == nil || deps.Index == nil {
		return nil, errors.New("assistant: parser, embedder, qa, store and index are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}

	a := &Assistant{
		parser:        deps.Parser,
		embedder:      deps.Embedder,
		qa:            deps.QA,
		store:         deps.Store,
		index:         deps.Index,
		archive:       deps.Archive,
		enricher:      deps.Enricher,
		fetcher:       deps.Fetcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		processedDir:  cfg.Processing.ProcessedDir,
		batchSize:     cfg.Models.BatchSize,
		minSectionLen: cfg.Processing.MinSectionLength,
		threshold:     cfg.Research.QAConfidenceThreshold,
		watchDebounce: cfg.Processing.WatchDebounce,
		searchDefault: 5,
		papers:        make(map[string]*types.ParsedPaper),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	if err := a.restore(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the store, the index and anything Open created.
func (a *Assistant) Close() error {
	var errs []error
	if err := a.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing vector index: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// restore loads stored papers into memory and re-indexes any whose vectors
// the index lost, preferring the saved embeddings.json over re-embedding.
func (a *Assistant) restore(ctx context.Context) error {
	papers, err := a.store.AllPapers(ctx)
	if err != nil {
		return fmt.Errorf("restoring papers: %w", err)
	}

	getter, canCheck := a.index.(interface {
		Get(id string) (vector.Record, bool)
	})

	a.mu.Lock()
	for _, p := range papers {
		a.papers[p.ID] = p
	}
	n := len(a.papers)
	a.mu.Unlock()
	a.metrics.Papers.Set(float64(n))

	if !canCheck {
		return nil
	}
	for _, p := range papers {
		if _, ok := getter.Get(vector.RecordID(p.ID, vector.KindAbstract)); ok || p.Metadata.Abstract == "" {
			continue
		}
		emb, err := a.loadEmbeddings(p.ID)
		if err != nil {
			emb, err = embed.EncodePaper(ctx, a.embedder, p, a.batchSize)
			if err != nil {
				a.logger.Warn("re-embedding restored paper failed", zap.String("paper_id", p.ID), zap.Error(err))
				continue
			}
		}
		if err := a.indexPaper(ctx, p, emb); err != nil {
			a.logger.Warn("re-indexing restored paper failed", zap.String("paper_id", p.ID), zap.Error(err))
		}
	}
	a.logger.Info("restored papers", zap.Int("count", n))
	return nil
}

func (a *Assistant) paper(id string) (*types.ParsedPaper, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.papers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
	}
	return p, nil
}

// Has reports whether the library holds id.
func (a *Assistant) Has(id string) bool {
	_, err := a.paper(id)
	return err == nil
}

// Count returns the number of papers in the library.
func (a *Assistant) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.papers)
}

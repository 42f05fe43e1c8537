// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/internal/export"
	"github.com/pdiddy/research-assistant/internal/parser"
	"github.com/pdiddy/research-assistant/internal/store"
	"github.com/pdiddy/research-assistant/internal/telemetry"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Info describes one paper.
func (a *Assistant) Info(_ context.Context, paperID string) (types.PaperInfo, error) {
	paper, err := a.paper(paperID)
	if err != nil {
		return types.PaperInfo{}, err
	}
	return paperInfo(paper), nil
}

func paperInfo(p *types.ParsedPaper) types.PaperInfo {
	sections := make([]types.SectionRef, len(p.Sections))
	for i, s := range p.Sections {
		sections[i] = types.SectionRef{Title: s.Title, Pages: fmt.Sprintf("%d-%d", s.PageStart, s.PageEnd)}
	}
	return types.PaperInfo{
		PaperID:         p.ID,
		Title:           p.Metadata.Title,
		Authors:         p.Metadata.Authors,
		Abstract:        p.Metadata.Abstract,
		Keywords:        p.Metadata.Keywords,
		Venue:           p.Metadata.Venue,
		Year:            p.Metadata.Year,
		DOI:             p.Metadata.DOI,
		ArxivID:         p.Metadata.ArxivID,
		PageCount:       p.PageCount,
		Sections:        sections,
		FiguresCount:    len(p.Figures),
		TablesCount:     len(p.Tables),
		ReferencesCount: len(p.References),
		CitationsCount:  parser.CountCitations(p.FullText),
	}
}

// List returns every paper, oldest first.
func (a *Assistant) List(ctx context.Context) ([]types.PaperListing, error) {
	return a.store.ListPapers(ctx)
}

// Papers returns the library's papers ordered by processing time, then id.
func (a *Assistant) Papers() []*types.ParsedPaper {
	a.mu.RLock()
	papers := make([]*types.ParsedPaper, 0, len(a.papers))
	for _, p := range a.papers {
		papers = append(papers, p)
	}
	a.mu.RUnlock()
	sort.Slice(papers, func(i, j int) bool {
		if !papers[i].ProcessedAt.Equal(papers[j].ProcessedAt) {
			return papers[i].ProcessedAt.Before(papers[j].ProcessedAt)
		}
		return papers[i].ID < papers[j].ID
	})
	return papers
}

// Search ranks papers by cosine similarity between the query, embedded as
// a research question, and each paper's abstract vector. Papers without an
// abstract are not ranked. maxResults <= 0 returns five.
func (a *Assistant) Search(ctx context.Context, query string, maxResults int) (_ []types.SearchHit, err error) {
	ctx, span := tracer.Start(ctx, "assistant.search", trace.WithAttributes(attribute.Int("max_results", maxResults)))
	defer func() { telemetry.End(span, err) }()

	if maxResults <= 0 {
		maxResults = a.searchDefault
	}
	if a.Count() == 0 {
		return []types.SearchHit{}, nil
	}

	vec, err := embed.EmbedQuestion(ctx, a.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := a.index.Query(ctx, vec, maxResults, vector.KindAbstract)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	hits := make([]types.SearchHit, 0, len(matches))
	for _, m := range matches {
		paper, err := a.paper(m.PaperID)
		if err != nil {
			continue
		}
		hits = append(hits, types.SearchHit{PaperInfo: paperInfo(paper), SimilarityScore: m.Score})
	}
	return hits, nil
}

// SearchSections runs a full-text query over section titles and content.
func (a *Assistant) SearchSections(ctx context.Context, query string, limit int) ([]types.SectionHit, error) {
	return a.store.SearchSections(ctx, query, limit)
}

// Delete removes a paper, its vectors, its processed files and its
// archived source.
func (a *Assistant) Delete(ctx context.Context, paperID string) (err error) {
	ctx, span := tracer.Start(ctx, "assistant.delete", trace.WithAttributes(attribute.String("paper.id", paperID)))
	defer func() { telemetry.End(span, err) }()

	paper, err := a.paper(paperID)
	if err != nil {
		return err
	}
	if err := a.store.DeletePaper(ctx, paperID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := a.index.Delete(ctx, recordIDs(paper)...); err != nil {
		return fmt.Errorf("deleting vectors for %s: %w", paperID, err)
	}
	if a.processedDir != "" {
		if err := os.RemoveAll(filepath.Join(a.processedDir, paperID)); err != nil {
			return fmt.Errorf("removing processed files for %s: %w", paperID, err)
		}
	}
	if a.archive != nil {
		if err := a.archive.Delete(ctx, paperID); err != nil {
			a.logger.Warn("removing archived source failed", zap.String("paper_id", paperID), zap.Error(err))
		}
	}

	a.mu.Lock()
	delete(a.papers, paperID)
	n := len(a.papers)
	a.mu.Unlock()
	a.metrics.Papers.Set(float64(n))
	a.logger.Info("deleted paper", zap.String("paper_id", paperID))
	return nil
}

// History returns recorded answers, newest first, for one paper or, with
// an empty paperID, the whole library.
func (a *Assistant) History(ctx context.Context, paperID string, limit int) ([]types.HistoryEntry, error) {
	if paperID != "" {
		if _, err := a.paper(paperID); err != nil {
			return nil, err
		}
	}
	return a.store.History(ctx, paperID, limit)
}

// Export writes one paper in the given format.
func (a *Assistant) Export(_ context.Context, paperID string, format export.Format, w io.Writer) error {
	paper, err := a.paper(paperID)
	if err != nil {
		return err
	}
	return export.Write(w, format, paper)
}

// ExportAll writes the whole library in the given format.
func (a *Assistant) ExportAll(_ context.Context, format export.Format, w io.Writer) error {
	return export.WriteLibrary(w, format, a.Papers())
}

// Supported reports whether name has a file extension the parser accepts.
func (a *Assistant) Supported(name string) bool {
	return a.parser.Supported(name)
}

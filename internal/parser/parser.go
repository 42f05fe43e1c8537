// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parser turns academic paper files into structured ParsedPaper
// values: bibliographic metadata, headed sections, figure and table
// captions, and the reference list.
package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrFileTooLarge is returned for files over the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

// Parser extracts page text with an Extractor and parses it.
type Parser struct {
	extractor convert.Extractor
	headers   []headerMatcher
	cfg       types.ProcessingConfig
	formats   map[string]bool
	logger    *zap.Logger

	// now is replaced in tests.
	now func() time.Time
}

// New builds a parser. Section patterns are tried in order.
func New(cfg types.ProcessingConfig, patterns []types.SectionPattern, ex convert.Extractor, logger *zap.Logger) (*Parser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers, err := compileHeaders(patterns)
	if err != nil {
		return nil, err
	}
	formats := make(map[string]bool, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		formats[strings.ToLower(f)] = true
	}
	return &Parser{
		extractor: ex,
		headers:   headers,
		cfg:       cfg,
		formats:   formats,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Supported reports whether path has one of the configured extensions.
func (p *Parser) Supported(path string) bool {
	return p.formats[strings.ToLower(filepath.Ext(path))]
}

// Parse reads and parses the paper at path.
func (p *Parser) Parse(ctx context.Context, path string) (*types.ParsedPaper, error) {
	if !p.Supported(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), convert.ErrUnsupportedFormat)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if p.cfg.MaxFileSize > 0 && info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", filepath.Base(path), info.Size(), p.cfg.MaxFileSize, ErrFileTooLarge)
	}

	doc, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	paper := p.ParseDocument(doc)
	paper.SourcePath = path

	p.logger.Info("parsed paper",
		zap.String("path", path),
		zap.String("title", paper.Metadata.Title),
		zap.Int("pages", paper.PageCount),
		zap.Int("sections", len(paper.Sections)),
		zap.Int("figures", len(paper.Figures)),
		zap.Int("tables", len(paper.Tables)),
		zap.Int("references", len(paper.References)),
	)
	return paper, nil
}

// ParseDocument parses already extracted page text.
func (p *Parser) ParseDocument(doc *convert.Document) *types.ParsedPaper {
	firstPage := ""
	if len(doc.Pages) > 0 {
		firstPage = doc.Pages[0]
	}

	var full strings.Builder
	for _, page := range doc.Pages {
		full.WriteString(page)
		full.WriteString("\n")
	}

	paper := &types.ParsedPaper{
		Metadata:    extractMetadata(firstPage, doc.Info),
		Sections:    extractSections(doc.Pages, p.headers),
		FullText:    full.String(),
		PageCount:   len(doc.Pages),
		ProcessedAt: p.now().UTC(),
	}
	if p.cfg.ExtractFigures {
		paper.Figures = extractFigures(doc.Pages)
	}
	if p.cfg.ExtractTables {
		paper.Tables = extractTables(doc.Pages)
	}
	if p.cfg.ParseReferences {
		paper.References = extractReferences(paper.FullText)
		paper.Bibliography = parseBibliography(paper.References)
	}
	return paper
}

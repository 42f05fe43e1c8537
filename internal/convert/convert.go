// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts per-page text from paper files with pluggable
// backends: a native PDF reader, the markitdown container and plain text.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/research-assistant/internal/container"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrUnsupportedFormat is returned for files no extractor can read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// DocumentInfo holds the document-level fields some formats carry.
type DocumentInfo struct {
	Title string
	// CreationDate is the raw date string (PDF form "D:20210314...").
	CreationDate string
}

// Document is the text of a file split into pages. Pages that carry no
// text are kept as empty strings so page indexes stay aligned.
type Document struct {
	Pages []string
	Info  DocumentInfo
}

// Extractor reads a file and returns its page text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Selector picks an extractor per file. The PDF backend is chosen once;
// text formats always use TextExtractor.
type Selector struct {
	PDF  Extractor
	Text Extractor
}

// NewSelector builds a Selector for the configured PDF backend. The
// markitdown backend requires a container runtime with the image present.
func NewSelector(ctx context.Context, backend types.ExtractorBackend) (*Selector, error) {
	s := &Selector{PDF: PDFExtractor{}, Text: TextExtractor{}}
	if backend != types.ExtractorMarkitdown {
		return s, nil
	}
	rt, err := container.Detect(ctx)
	if err != nil {
		return nil, err
	}
	md, err := NewMarkitdownExtractor(ctx, rt)
	if err != nil {
		return nil, err
	}
	s.PDF = md
	return s, nil
}

// ForPath returns the extractor for path's extension.
func (s *Selector) ForPath(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return s.PDF, nil
	case ".txt", ".tex", ".md":
		return s.Text, nil
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
}

// Extract dispatches to the extractor for path.
func (s *Selector) Extract(ctx context.Context, path string) (*Document, error) {
	ex, err := s.ForPath(path)
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, path)
}

// splitPages splits converter output on form feeds. Text without form feeds
// is a single page.
func splitPages(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

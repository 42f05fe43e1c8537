// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills gaps in parsed paper metadata from academic APIs.
// A paper is only looked up when its first page carried a DOI or an arXiv
// id; fields the parser already found are never overwritten.
package enrich

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Source looks up a paper's metadata by the identifiers in md. ok is false
// when the source has nothing for the identifiers.
type Source interface {
	Name() string
	Lookup(ctx context.Context, md types.PaperMetadata) (found types.PaperMetadata, ok bool, err error)
}

// Enricher consults sources in order until the metadata is complete.
type Enricher struct {
	Sources []Source
	logger  *zap.Logger
}

// New builds an Enricher with arXiv, OpenAlex and Semantic Scholar sources
// sharing one HTTP client.
func New(research types.ResearchConfig, httpCfg types.HTTPConfig, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return &Enricher{
		Sources: []Source{
			&ArxivSource{Client: client, UserAgent: httpCfg.UserAgent},
			&OpenAlexSource{Client: client, UserAgent: httpCfg.UserAgent, Email: research.OpenAlexEmail},
			&SemanticScholarSource{Client: client, UserAgent: httpCfg.UserAgent, APIKey: research.SemanticScholarAPIKey},
		},
		logger: logger,
	}
}

// Enrich fills empty metadata fields of paper in place and reports whether
// anything changed. Source failures are logged and skipped.
func (e *Enricher) Enrich(ctx context.Context, paper *types.ParsedPaper) bool {
	md := &paper.Metadata
	if md.DOI == "" && md.ArxivID == "" {
		return false
	}

	changed := false
	for _, src := range e.Sources {
		if complete(*md) {
			break
		}
		found, ok, err := src.Lookup(ctx, *md)
		if err != nil {
			e.logger.Warn("metadata lookup failed",
				zap.String("source", src.Name()),
				zap.String("paper_id", paper.ID),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if merge(md, found) {
			changed = true
			e.logger.Debug("metadata enriched",
				zap.String("source", src.Name()),
				zap.String("paper_id", paper.ID))
		}
	}
	return changed
}

func complete(md types.PaperMetadata) bool {
	return md.Title != "" && len(md.Authors) > 0 && md.Abstract != "" &&
		md.Year > 0 && md.Venue != "" && md.DOI != "" && md.ArxivID != ""
}

// merge copies fields of src into dst where dst is empty.
func merge(dst *types.PaperMetadata, src types.PaperMetadata) bool {
	changed := false
	setString := func(d *string, s string) {
		if *d == "" && strings.TrimSpace(s) != "" {
			*d = strings.TrimSpace(s)
			changed = true
		}
	}
	setString(&dst.Title, src.Title)
	setString(&dst.Abstract, src.Abstract)
	setString(&dst.Venue, src.Venue)
	setString(&dst.DOI, src.DOI)
	setString(&dst.ArxivID, src.ArxivID)
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
		changed = true
	}
	if len(dst.Keywords) == 0 && len(src.Keywords) > 0 {
		dst.Keywords = src.Keywords
		changed = true
	}
	if dst.Year == 0 && src.Year > 0 {
		dst.Year = src.Year
		changed = true
	}
	return changed
}

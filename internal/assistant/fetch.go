// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/telemetry"
)

// Fetch downloads a paper by arXiv id, DOI or URL and uploads it. The
// paper id defaults to the identifier's slug (arxiv-2301.07041). A paper
// already downloaded and in the library is returned without re-processing.
func (a *Assistant) Fetch(ctx context.Context, identifier, paperID string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "assistant.fetch", trace.WithAttributes(attribute.String("identifier", identifier)))
	defer func() { telemetry.End(span, err) }()

	if a.fetcher == nil {
		return "", ErrFetchDisabled
	}
	res, err := a.fetcher.Fetch(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", identifier, err)
	}
	if paperID == "" {
		paperID = res.Slug
	}
	if res.Skipped && a.Has(paperID) {
		a.logger.Info("paper already in library", zap.String("paper_id", paperID))
		return paperID, nil
	}
	return a.Upload(ctx, res.Path, paperID)
}

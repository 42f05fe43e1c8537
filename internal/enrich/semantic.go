// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper lookup endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

const semanticFields = "title,abstract,authors,externalIds,year,venue"

// SemanticScholarSource looks papers up by DOI or arXiv id.
type SemanticScholarSource struct {
	Client    *http.Client
	UserAgent string
	APIKey    string
}

// Name returns the source identifier.
func (s *SemanticScholarSource) Name() string { return "semantic_scholar" }

// Lookup fetches the paper record, preferring the DOI over the arXiv id.
func (s *SemanticScholarSource) Lookup(ctx context.Context, md types.PaperMetadata) (types.PaperMetadata, bool, error) {
	var id string
	switch {
	case md.DOI != "":
		id = "DOI:" + md.DOI
	case md.ArxivID != "":
		id = "ARXIV:" + md.ArxivID
	default:
		return types.PaperMetadata{}, false, nil
	}

	reqURL := semanticAPIBase + url.PathEscape(id) + "?" + url.Values{"fields": {semanticFields}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.PaperMetadata{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.PaperMetadata{}, false, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var paper semanticPaper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	found := types.PaperMetadata{
		Title:    paper.Title,
		Abstract: paper.Abstract,
		Venue:    paper.Venue,
		Year:     paper.Year,
		DOI:      paper.ExternalIDs.DOI,
		ArxivID:  paper.ExternalIDs.ArXiv,
	}
	for _, a := range paper.Authors {
		found.Authors = append(found.Authors, a.Name)
	}
	return found, true, nil
}

// Semantic Scholar API JSON structures.
type semanticPaper struct {
	PaperID     string              `json:"paperId"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract"`
	Venue       string              `json:"venue"`
	Year        int                 `json:"year"`
	Authors     []semanticAuthor    `json:"authors"`
	ExternalIDs semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

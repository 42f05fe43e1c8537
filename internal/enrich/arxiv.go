// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSource looks papers up by arXiv id.
type ArxivSource struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv" }

// Lookup fetches the Atom entry for md.ArxivID.
func (s *ArxivSource) Lookup(ctx context.Context, md types.PaperMetadata) (types.PaperMetadata, bool, error) {
	if md.ArxivID == "" {
		return types.PaperMetadata{}, false, nil
	}

	apiURL := arxivAPIBase + "?id_list=" + url.QueryEscape(md.ArxivID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.PaperMetadata{}, false, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("parsing arXiv response: %w", err)
	}
	// arXiv answers unknown ids with a single entry that has no title.
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return types.PaperMetadata{}, false, nil
	}

	entry := feed.Entries[0]
	found := types.PaperMetadata{
		Title:    collapse(entry.Title),
		Abstract: collapse(entry.Summary),
		DOI:      strings.TrimSpace(entry.DOI),
		Venue:    collapse(entry.JournalRef),
	}
	for _, a := range entry.Authors {
		found.Authors = append(found.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range entry.Categories {
		found.Keywords = append(found.Keywords, c.Term)
	}
	if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
		found.Year = t.Year()
	}
	return found, true, nil
}

// collapse joins the whitespace runs arXiv leaves in wrapped titles.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	DOI        string          `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string          `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// OpenAlexSource looks papers up by DOI.
type OpenAlexSource struct {
	Client    *http.Client
	UserAgent string
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the source identifier.
func (s *OpenAlexSource) Name() string { return "openalex" }

// Lookup fetches the OpenAlex work for md.DOI.
func (s *OpenAlexSource) Lookup(ctx context.Context, md types.PaperMetadata) (types.PaperMetadata, bool, error) {
	if md.DOI == "" {
		return types.PaperMetadata{}, false, nil
	}

	apiURL := openAlexAPIBase + "https://doi.org/" + md.DOI
	if s.Email != "" {
		apiURL += "?mailto=" + url.QueryEscape(s.Email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.PaperMetadata{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return types.PaperMetadata{}, false, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return types.PaperMetadata{}, false, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	found := types.PaperMetadata{
		Title:    work.Title,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
		Year:     work.PublicationYear,
		DOI:      strings.TrimPrefix(work.DOI, "https://doi.org/"),
	}
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			found.Authors = append(found.Authors, a.Author.DisplayName)
		}
	}
	if loc := work.PrimaryLocation; loc != nil && loc.Source != nil {
		found.Venue = loc.Source.DisplayName
	}
	for _, kw := range work.Keywords {
		found.Keywords = append(found.Keywords, kw.DisplayName)
	}
	return found, true, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The index maps each word to the positions it appears at.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	Keywords              []openAlexKeyword    `json:"keywords"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source *openAlexVenue `json:"source"`
}

type openAlexVenue struct {
	DisplayName string `json:"display_name"`
}

type openAlexKeyword struct {
	DisplayName string `json:"display_name"`
}

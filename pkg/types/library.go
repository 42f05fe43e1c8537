// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SectionRef names a section and the page range it spans ("3-5").
type SectionRef struct {
	Title string `json:"title" yaml:"title"`
	Pages string `json:"pages" yaml:"pages"`
}

// PaperInfo is the descriptive view of a stored paper.
type PaperInfo struct {
	PaperID         string       `json:"paper_id" yaml:"paper_id"`
	Title           string       `json:"title" yaml:"title"`
	Authors         []string     `json:"authors" yaml:"authors"`
	Abstract        string       `json:"abstract" yaml:"abstract"`
	Keywords        []string     `json:"keywords" yaml:"keywords"`
	Venue           string       `json:"venue,omitempty" yaml:"venue,omitempty"`
	Year            int          `json:"year,omitempty" yaml:"year,omitempty"`
	DOI             string       `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID         string       `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	PageCount       int          `json:"page_count" yaml:"page_count"`
	Sections        []SectionRef `json:"sections" yaml:"sections"`
	FiguresCount    int          `json:"figures_count" yaml:"figures_count"`
	TablesCount     int          `json:"tables_count" yaml:"tables_count"`
	ReferencesCount int          `json:"references_count" yaml:"references_count"`
	CitationsCount  int          `json:"citations_count" yaml:"citations_count"`
}

// PaperListing is the short row shown by list operations.
type PaperListing struct {
	PaperID   string   `json:"paper_id" yaml:"paper_id"`
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	Year      int      `json:"year,omitempty" yaml:"year,omitempty"`
	PageCount int      `json:"page_count" yaml:"page_count"`
}

// SearchHit is a paper ranked by similarity to a query.
type SearchHit struct {
	PaperInfo       `yaml:",inline"`
	SimilarityScore float64 `json:"similarity_score" yaml:"similarity_score"`
}

// SectionHit is a full-text match inside a stored section.
type SectionHit struct {
	PaperID   string  `json:"paper_id" yaml:"paper_id"`
	Title     string  `json:"title" yaml:"title"`
	Snippet   string  `json:"snippet" yaml:"snippet"`
	PageStart int     `json:"page_start" yaml:"page_start"`
	Rank      float64 `json:"rank" yaml:"rank"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperMetadata holds bibliographic fields recovered from a paper's first page.
// Empty strings and a zero Year mean the field could not be determined.
type PaperMetadata struct {
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Abstract string   `json:"abstract" yaml:"abstract"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Venue    string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID  string   `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
}

// PaperSection is a headed region of a paper. Page numbers are zero-based
// page indexes.
type PaperSection struct {
	Title     string `json:"title" yaml:"title"`
	Content   string `json:"content" yaml:"content"`
	Level     int    `json:"level" yaml:"level"`
	PageStart int    `json:"page_start" yaml:"page_start"`
	PageEnd   int    `json:"page_end" yaml:"page_end"`
}

// PaperFigure is a figure caption found in the page text. PageNumber is one-based.
type PaperFigure struct {
	Caption      string `json:"caption" yaml:"caption"`
	ImagePath    string `json:"image_path,omitempty" yaml:"image_path,omitempty"`
	PageNumber   int    `json:"page_number" yaml:"page_number"`
	FigureNumber string `json:"figure_number,omitempty" yaml:"figure_number,omitempty"`
}

// PaperTable is a table caption with the rows that follow it. Cells are
// joined with " | ". PageNumber is one-based.
type PaperTable struct {
	Caption     string `json:"caption" yaml:"caption"`
	Content     string `json:"content" yaml:"content"`
	PageNumber  int    `json:"page_number" yaml:"page_number"`
	TableNumber string `json:"table_number,omitempty" yaml:"table_number,omitempty"`
}

// BibliographyEntry represents a parsed entry from a paper's reference section.
type BibliographyEntry struct {
	// Key is the reference label as it appears in the paper (e.g. "1").
	Key string `json:"key" yaml:"key"`

	// Raw is the unparsed reference text.
	Raw string `json:"raw" yaml:"raw"`

	Authors []string `json:"authors" yaml:"authors"`
	Title   string   `json:"title" yaml:"title"`
	Year    string   `json:"year" yaml:"year"`
	Venue   string   `json:"venue" yaml:"venue"`
}

// Citation is an inline reference such as [3] or [Smith et al., 2020].
type Citation struct {
	Key     string `json:"key" yaml:"key"`
	Context string `json:"context" yaml:"context"`
}

// ParsedPaper is the complete result of parsing one paper.
type ParsedPaper struct {
	// ID is assigned at upload time; the parser leaves it empty.
	ID string `json:"id" yaml:"id"`

	Metadata     PaperMetadata       `json:"metadata" yaml:"metadata"`
	Sections     []PaperSection      `json:"sections" yaml:"sections"`
	Figures      []PaperFigure       `json:"figures" yaml:"figures"`
	Tables       []PaperTable        `json:"tables" yaml:"tables"`
	References   []string            `json:"references" yaml:"references"`
	Bibliography []BibliographyEntry `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`
	FullText     string              `json:"full_text,omitempty" yaml:"full_text,omitempty"`
	PageCount    int                 `json:"page_count" yaml:"page_count"`

	// SourcePath is where the source file is kept: its archive location when
	// archived, otherwise the path or file name it was uploaded from.
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`

	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`
}

// PaperEmbeddings holds the vectors computed for one paper. Any field may be
// empty when the corresponding text was missing.
type PaperEmbeddings struct {
	Title    []float32   `json:"title,omitempty"`
	Abstract []float32   `json:"abstract,omitempty"`
	Sections [][]float32 `json:"sections,omitempty"`
}

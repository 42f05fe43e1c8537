// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders parsed papers as plain text, JSON, YAML, BibTeX
// and CSL-JSON.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Format names an export format.
type Format string

const (
	FormatText    Format = "txt"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatBibTeX  Format = "bibtex"
	FormatCSLJSON Format = "csl-json"
)

// ErrUnknownFormat is returned for format names ParseFormat does not know.
var ErrUnknownFormat = errors.New("unknown export format")

var formatAliases = map[string]Format{
	"txt":      FormatText,
	"text":     FormatText,
	"json":     FormatJSON,
	"yaml":     FormatYAML,
	"yml":      FormatYAML,
	"bibtex":   FormatBibTeX,
	"bib":      FormatBibTeX,
	"csl-json": FormatCSLJSON,
	"csl":      FormatCSLJSON,
}

// ParseFormat resolves a format name, accepting common aliases.
func ParseFormat(name string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// ContentType returns the MIME type served for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatBibTeX:
		return "application/x-bibtex"
	case FormatCSLJSON:
		return "application/vnd.citationstyles.csl+json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension, with dot, used when writing a
// format to disk.
func (f Format) Extension() string {
	switch f {
	case FormatBibTeX:
		return ".bib"
	case FormatCSLJSON:
		return ".csl.json"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Document is the structured export of one paper. Full text is left out.
type Document struct {
	ID           string                    `json:"id" yaml:"id"`
	Metadata     types.PaperMetadata       `json:"metadata" yaml:"metadata"`
	PageCount    int                       `json:"page_count" yaml:"page_count"`
	Sections     []types.PaperSection      `json:"sections" yaml:"sections"`
	Figures      []types.PaperFigure       `json:"figures,omitempty" yaml:"figures,omitempty"`
	Tables       []types.PaperTable        `json:"tables,omitempty" yaml:"tables,omitempty"`
	References   []string                  `json:"references,omitempty" yaml:"references,omitempty"`
	Bibliography []types.BibliographyEntry `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`
}

// NewDocument copies the exportable parts of a paper.
func NewDocument(p *types.ParsedPaper) Document {
	return Document{
		ID:           p.ID,
		Metadata:     p.Metadata,
		PageCount:    p.PageCount,
		Sections:     p.Sections,
		Figures:      p.Figures,
		Tables:       p.Tables,
		References:   p.References,
		Bibliography: p.Bibliography,
	}
}

// Write renders one paper in the given format.
func Write(w io.Writer, format Format, paper *types.ParsedPaper) error {
	switch format {
	case FormatText:
		return writeText(w, paper)
	case FormatJSON:
		return writeJSON(w, NewDocument(paper))
	case FormatYAML:
		return writeYAML(w, NewDocument(paper))
	case FormatBibTeX:
		_, err := io.WriteString(w, BibTeX(paper))
		return err
	case FormatCSLJSON:
		return writeJSON(w, []CSLItem{ToCSL(paper)})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteLibrary renders several papers. Text entries are separated by a
// rule; structured formats produce a list.
func WriteLibrary(w io.Writer, format Format, papers []*types.ParsedPaper) error {
	switch format {
	case FormatText:
		for i, p := range papers {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"+strings.Repeat("=", 72)+"\n\n"); err != nil {
					return err
				}
			}
			if err := writeText(w, p); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON, FormatYAML:
		docs := make([]Document, len(papers))
		for i, p := range papers {
			docs[i] = NewDocument(p)
		}
		if format == FormatJSON {
			return writeJSON(w, docs)
		}
		return writeYAML(w, docs)
	case FormatBibTeX:
		for _, p := range papers {
			if _, err := io.WriteString(w, BibTeX(p)); err != nil {
				return err
			}
		}
		return nil
	case FormatCSLJSON:
		items := make([]CSLItem, len(papers))
		for i, p := range papers {
			items[i] = ToCSL(p)
		}
		return writeJSON(w, items)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func writeText(w io.Writer, p *types.ParsedPaper) error {
	var b strings.Builder
	m := p.Metadata

	title := m.Title
	if title == "" {
		title = "Untitled (" + p.ID + ")"
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))) + "\n\n")

	if len(m.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(m.Authors, ", "))
	}
	if m.Year > 0 {
		fmt.Fprintf(&b, "Year: %d\n", m.Year)
	}
	if m.Venue != "" {
		fmt.Fprintf(&b, "Venue: %s\n", m.Venue)
	}
	if m.DOI != "" {
		fmt.Fprintf(&b, "DOI: %s\n", m.DOI)
	}
	if m.ArxivID != "" {
		fmt.Fprintf(&b, "arXiv: %s\n", m.ArxivID)
	}
	if len(m.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(m.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Pages: %d\n", p.PageCount)

	if m.Abstract != "" {
		fmt.Fprintf(&b, "\nAbstract\n--------\n%s\n", m.Abstract)
	}

	for _, sec := range p.Sections {
		fmt.Fprintf(&b, "\n%s (pages %d-%d)\n%s\n%s\n",
			sec.Title, sec.PageStart, sec.PageEnd,
			strings.Repeat("-", len([]rune(sec.Title))), sec.Content)
	}

	if len(p.Figures) > 0 {
		b.WriteString("\nFigures\n-------\n")
		for _, f := range p.Figures {
			fmt.Fprintf(&b, "p.%d  %s\n", f.PageNumber, f.Caption)
		}
	}
	if len(p.Tables) > 0 {
		b.WriteString("\nTables\n------\n")
		for _, t := range p.Tables {
			fmt.Fprintf(&b, "p.%d  %s\n", t.PageNumber, t.Caption)
		}
	}
	if len(p.References) > 0 {
		b.WriteString("\nReferences\n----------\n")
		for _, r := range p.References {
			b.WriteString(r + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

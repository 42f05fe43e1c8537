// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CitationKey builds an AuthorYearWord key such as "vaswani2017attention".
// Papers without authors fall back to the paper id.
func CitationKey(p *types.ParsedPaper) string {
	var b strings.Builder
	if len(p.Metadata.Authors) > 0 {
		b.WriteString(keyPart(familyName(p.Metadata.Authors[0])))
	}
	if b.Len() == 0 {
		b.WriteString(keyPart(p.ID))
	}
	if p.Metadata.Year > 0 {
		fmt.Fprintf(&b, "%d", p.Metadata.Year)
	}
	for _, w := range strings.Fields(p.Metadata.Title) {
		if part := keyPart(w); len(part) > 3 && !titleStopWords[part] {
			b.WriteString(part)
			break
		}
	}
	if b.Len() == 0 {
		return "paper"
	}
	return b.String()
}

var titleStopWords = map[string]bool{
	"with": true, "from": true, "into": true, "over": true, "that": true,
	"this": true, "their": true, "towards": true, "toward": true,
}

func keyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// familyName returns the last space-separated token of a name.
func familyName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " "); i >= 0 {
		return name[i+1:]
	}
	return name
}

// BibTeX renders a paper as a single BibTeX entry. Papers with a venue are
// @article; the rest are @misc.
func BibTeX(p *types.ParsedPaper) string {
	m := p.Metadata
	kind := "misc"
	if m.Venue != "" {
		kind = "article"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", kind, CitationKey(p))
	fmt.Fprintf(&b, "  title = {%s},\n", bibValue(m.Title))
	if len(m.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", bibValue(strings.Join(m.Authors, " and ")))
	}
	if m.Year > 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", m.Year)
	}
	if m.Venue != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", bibValue(m.Venue))
	}
	if m.DOI != "" {
		fmt.Fprintf(&b, "  doi = {%s},\n", m.DOI)
	}
	if m.ArxivID != "" {
		fmt.Fprintf(&b, "  eprint = {%s},\n", m.ArxivID)
		b.WriteString("  archivePrefix = {arXiv},\n")
	}
	if len(m.Keywords) > 0 {
		fmt.Fprintf(&b, "  keywords = {%s},\n", bibValue(strings.Join(m.Keywords, ", ")))
	}
	b.WriteString("}\n\n")
	return b.String()
}

// bibValue flattens whitespace and drops unbalanced braces.
func bibValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.Count(s, "{") != strings.Count(s, "}") {
		s = strings.NewReplacer("{", "", "}", "").Replace(s)
	}
	return s
}

// CSLItem is a bibliographic entry in CSL-JSON, the input format of Pandoc
// citeproc and most reference managers.
type CSLItem struct {
	ID             string    `json:"id" yaml:"id"`
	Type           string    `json:"type" yaml:"type"`
	Title          string    `json:"title" yaml:"title"`
	Author         []CSLName `json:"author,omitempty" yaml:"author,omitempty"`
	Abstract       string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty" yaml:"container-title,omitempty"`
	Issued         *CSLDate  `json:"issued,omitempty" yaml:"issued,omitempty"`
	DOI            string    `json:"DOI,omitempty" yaml:"DOI,omitempty"`
	URL            string    `json:"URL,omitempty" yaml:"URL,omitempty"`
	Keyword        string    `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	NumberOfPages  int       `json:"number-of-pages,omitempty" yaml:"number-of-pages,omitempty"`
}

// CSLName is a person's name in CSL.
type CSLName struct {
	Family  string `json:"family,omitempty" yaml:"family,omitempty"`
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// CSLDate is a CSL date using date-parts.
type CSLDate struct {
	DateParts [][]int `json:"date-parts" yaml:"date-parts"`
}

// ToCSL converts a paper to a CSL item keyed by its citation key.
func ToCSL(p *types.ParsedPaper) CSLItem {
	m := p.Metadata
	item := CSLItem{
		ID:             CitationKey(p),
		Type:           "article",
		Title:          m.Title,
		Abstract:       m.Abstract,
		ContainerTitle: m.Venue,
		DOI:            m.DOI,
		Keyword:        strings.Join(m.Keywords, ", "),
		NumberOfPages:  p.PageCount,
	}
	if m.Venue != "" {
		item.Type = "article-journal"
	}
	for _, a := range m.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if m.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{m.Year}}}
	}
	if m.ArxivID != "" {
		item.URL = "https://arxiv.org/abs/" + m.ArxivID
	} else if m.DOI != "" {
		item.URL = "https://doi.org/" + m.DOI
	}
	return item
}

// parseAuthorName splits a full name on its last space into given and
// family parts. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}

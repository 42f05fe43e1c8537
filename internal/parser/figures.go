// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parser

import (
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const maxTableRows = 30

var (
	figureCaptionRe = regexp.MustCompile(`(?i)^\s*fig(?:ure|\.)?\s*(\d+)[:.]?\s*(.+)`)
	tableCaptionRe  = regexp.MustCompile(`(?i)^\s*tab(?:le|\.)?\s*(\d+)[:.]?\s*(.+)`)
	cellSplitRe     = regexp.MustCompile(`\t+|\s{2,}`)
)

// extractFigures finds figure caption lines. Only the first caption for
// each figure number is kept, so body text like "Figure 2 shows" after the
// real caption is ignored. Page numbers are one-based.
func extractFigures(pages []string) []types.PaperFigure {
	seen := make(map[string]bool)
	var figures []types.PaperFigure
	for pageNum, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			m := figureCaptionRe.FindStringSubmatch(line)
			if m == nil || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			figures = append(figures, types.PaperFigure{
				Caption:      strings.TrimSpace(m[2]),
				PageNumber:   pageNum + 1,
				FigureNumber: m[1],
			})
		}
	}
	return figures
}

// extractTables finds table caption lines and takes the block of non-blank
// lines after each caption as the table body.
func extractTables(pages []string) []types.PaperTable {
	seen := make(map[string]bool)
	var tables []types.PaperTable
	for pageNum, page := range pages {
		lines := strings.Split(page, "\n")
		for i, line := range lines {
			m := tableCaptionRe.FindStringSubmatch(line)
			if m == nil || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			tables = append(tables, types.PaperTable{
				Caption:     strings.TrimSpace(m[2]),
				Content:     tableBody(lines[i+1:]),
				PageNumber:  pageNum + 1,
				TableNumber: m[1],
			})
		}
	}
	return tables
}

func tableBody(lines []string) string {
	var rows []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(rows) == maxTableRows {
			break
		}
		cells := cellSplitRe.Split(line, -1)
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}

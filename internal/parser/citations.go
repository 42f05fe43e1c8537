// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parser

import (
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	// numericCiteRe matches numeric citations like [1] or [12].
	numericCiteRe = regexp.MustCompile(`\[(\d+)\]`)

	// authorYearCiteRe matches [Smith et al., 2020] or [Smith and Jones, 2019].
	authorYearCiteRe = regexp.MustCompile(`\[([A-Z][a-z]+(?:\s+(?:et\s+al\.|and\s+[A-Z][a-z]+))?(?:,\s*\d{4}))\]`)
)

const citationWindow = 40

// ExtractCitations returns the distinct inline citations in text, numeric
// ones first, each with a short snippet of surrounding text.
func ExtractCitations(text string) []types.Citation {
	seen := make(map[string]bool)
	var citations []types.Citation
	for _, re := range []*regexp.Regexp{numericCiteRe, authorYearCiteRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			full := text[m[0]:m[1]]
			if seen[full] {
				continue
			}
			seen[full] = true
			citations = append(citations, types.Citation{
				Key:     text[m[2]:m[3]],
				Context: citationContext(text, m[0], m[1]),
			})
		}
	}
	return citations
}

// citationContext returns up to citationWindow bytes either side of a
// match, trimmed to word boundaries.
func citationContext(text string, start, end int) string {
	from := max(start-citationWindow, 0)
	to := min(end+citationWindow, len(text))
	snippet := text[from:to]
	if from > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < citationWindow {
			snippet = snippet[i+1:]
		}
	}
	if to < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-citationWindow {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}

// bodyText returns the full text with everything from the references
// header on removed, so reference labels are not counted as citations.
func bodyText(fullText string) string {
	lines := strings.Split(fullText, "\n")
	last := -1
	for i, line := range lines {
		if referencesHeaderRe.MatchString(strings.TrimSpace(line)) {
			last = i
		}
	}
	if last < 0 {
		return fullText
	}
	return strings.Join(lines[:last], "\n")
}

// CountCitations returns the number of distinct inline citations in the
// body of a paper, ignoring the reference list.
func CountCitations(fullText string) int {
	return len(ExtractCitations(bodyText(fullText)))
}

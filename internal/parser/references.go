// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	referencesHeaderRe = regexp.MustCompile(`(?i)^(?:\d+\.?\s*)?references?$`)
	appendixRe         = regexp.MustCompile(`(?i)^appendix`)

	// refStartRe matches the label that opens a reference entry: "[12]" or "12.".
	refStartRe = regexp.MustCompile(`^(?:\[(\d+)\]|(\d+)\.)\s*`)
)

// extractReferences returns the raw entries listed under the last
// "References" line, stopping at an appendix. Entries start at a numbered
// label and absorb the lines that follow. Unnumbered lists are split on
// blank lines.
func extractReferences(fullText string) []string {
	lines := strings.Split(fullText, "\n")
	start := -1
	for i, line := range lines {
		if referencesHeaderRe.MatchString(strings.TrimSpace(line)) {
			start = i + 1
		}
	}
	if start < 0 {
		return nil
	}

	var (
		refs     []string
		current  []string
		numbered bool
	)
	flush := func() {
		if len(current) > 0 {
			refs = append(refs, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if appendixRe.MatchString(line) {
			break
		}
		switch {
		case refStartRe.MatchString(line):
			if !numbered {
				refs, current = nil, nil
			}
			numbered = true
			flush()
			current = []string{line}
		case line == "":
			if !numbered {
				flush()
			}
		default:
			current = append(current, line)
		}
	}
	flush()
	return refs
}

// parseBibliography turns raw reference strings into structured entries.
// Unnumbered entries are keyed by position.
func parseBibliography(refs []string) []types.BibliographyEntry {
	entries := make([]types.BibliographyEntry, 0, len(refs))
	for i, ref := range refs {
		key := ""
		body := ref
		if m := refStartRe.FindStringSubmatch(ref); m != nil {
			key = m[1] + m[2]
			body = ref[len(m[0]):]
		}
		if key == "" {
			key = strconv.Itoa(i + 1)
		}
		entries = append(entries, parseBibEntry(key, strings.TrimSpace(body)))
	}
	return entries
}

// authorBlockRe matches an author section like "Smith, A. and Jones, B." or
// "Brown, T. et al." at the start of a bibliography entry.
var authorBlockRe = regexp.MustCompile(
	`^((?:[A-Z][a-z]+(?:,\s+[A-Z]\.?)?(?:,?\s+(?:and|&)\s+)?)+(?:\s*et\s+al\.)?)\s*[.]?\s+(.+)$`,
)

// parseBibEntry splits an entry into author block, title, venue and year.
func parseBibEntry(key, raw string) types.BibliographyEntry {
	entry := types.BibliographyEntry{Key: key, Raw: raw, Year: extractBibYear(raw)}

	rest := raw
	if m := authorBlockRe.FindStringSubmatch(raw); m != nil {
		entry.Authors = parseAuthors(strings.TrimRight(m[1], ". "))
		rest = m[2]
	}
	parts := splitOnPeriods(rest)
	if len(parts) >= 1 {
		entry.Title = parts[0]
	}
	if len(parts) >= 2 {
		entry.Venue = cleanVenue(parts[1])
	}
	return entry
}

var bibYearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

func extractBibYear(text string) string {
	if m := bibYearRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

var initialRe = regexp.MustCompile(`\b([A-Z])\.`)

// splitOnPeriods splits at ". " boundaries without breaking "et al.",
// "e.g.", "i.e." or single-letter initials.
func splitOnPeriods(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	safe = initialRe.ReplaceAllString(safe, "${1}\x00")

	var result []string
	for _, p := range strings.Split(safe, ". ") {
		p = strings.ReplaceAll(p, "\x00", ".")
		p = strings.TrimSpace(strings.TrimRight(p, "."))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseAuthors splits an author block on its " and " connector.
func parseAuthors(block string) []string {
	var authors []string
	for _, half := range strings.SplitN(strings.TrimSpace(block), " and ", 2) {
		if half = strings.TrimSpace(half); half != "" {
			authors = append(authors, half)
		}
	}
	return authors
}

// cleanVenue drops the year and trailing punctuation from a venue segment.
func cleanVenue(text string) string {
	text = bibYearRe.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.TrimSpace(strings.TrimRight(text, "., "))
}

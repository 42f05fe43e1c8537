// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	unknownTitle   = "Unknown Title"
	maxAuthors     = 10
	authorWindow   = 1000
	headerWindow   = 2000
	titleScanLines = 10
	minTitleLength = 20
)

var (
	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z][a-z]+\s+[A-Z][a-z]+`),
		regexp.MustCompile(`[A-Z]\.\s*[A-Z][a-z]+`),
		regexp.MustCompile(`[A-Z][a-z]+\s+[A-Z]\.\s*[A-Z][a-z]+`),
	}

	venuePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(ICML|NeurIPS|ICLR|AAAI|IJCAI|ACL|EMNLP|NAACL|COLING)`),
		regexp.MustCompile(`(?i)(IEEE|ACM|Nature|Science|PNAS)`),
		regexp.MustCompile(`(?is)Proceedings of the.*?(\d{4})`),
		regexp.MustCompile(`(?is)Conference on.*?(\d{4})`),
	}

	abstractStartRe = regexp.MustCompile(`(?i)abstract[:\s]*`)
	abstractStopRe  = regexp.MustCompile(`(?i)^(?:keywords|introduction|\d+\.)`)
	keywordStartRe  = regexp.MustCompile(`(?i)keywords?[:\s]*`)
	keywordStopRe   = regexp.MustCompile(`(?i)^(?:introduction|\d+\.)`)
	keywordSplitRe  = regexp.MustCompile(`[,;·•]`)
	spaceRunRe      = regexp.MustCompile(`\s+`)

	headerYearRe = regexp.MustCompile(`(?:20|19)\d{2}`)
	pdfDateRe    = regexp.MustCompile(`^(?:D:)?(\d{4})`)
	doiRe        = regexp.MustCompile(`(?i)doi[:\s]*(10\.\d+/\S+)`)
	arxivRe      = regexp.MustCompile(`(?i)arxiv[:\s]*(\d{4}\.\d{4,5})`)
)

// extractMetadata derives bibliographic fields from the first page text and
// the document info dictionary.
func extractMetadata(firstPage string, info convert.DocumentInfo) types.PaperMetadata {
	return types.PaperMetadata{
		Title:    extractTitle(firstPage, info.Title),
		Authors:  extractAuthors(firstPage),
		Abstract: extractAbstract(firstPage),
		Keywords: extractKeywords(firstPage),
		Venue:    extractVenue(firstPage),
		Year:     extractYear(firstPage, info.CreationDate),
		DOI:      firstGroup(doiRe, firstPage),
		ArxivID:  firstGroup(arxivRe, firstPage),
	}
}

// extractTitle prefers the info title, then the longest of the first lines
// that is long enough and is not a section header.
func extractTitle(text, infoTitle string) string {
	if t := strings.TrimSpace(infoTitle); t != "" {
		return t
	}
	lines := strings.Split(text, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	best := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if utf8.RuneCountInString(line) <= minTitleLength ||
			strings.HasPrefix(lower, "abstract") || strings.HasPrefix(lower, "introduction") {
			continue
		}
		if utf8.RuneCountInString(line) > utf8.RuneCountInString(best) {
			best = line
		}
	}
	if best == "" {
		return unknownTitle
	}
	return best
}

// extractAuthors collects capitalised name shapes from the top of the page,
// pattern by pattern, keeping the first occurrence of each.
func extractAuthors(text string) []string {
	head := prefix(text, authorWindow)
	seen := make(map[string]bool)
	var authors []string
	for _, re := range authorPatterns {
		for _, m := range re.FindAllString(head, -1) {
			if seen[m] {
				continue
			}
			seen[m] = true
			authors = append(authors, m)
			if len(authors) == maxAuthors {
				return authors
			}
		}
	}
	return authors
}

func extractAbstract(text string) string {
	abstract, ok := scanBlock(text, abstractStartRe, abstractStopRe)
	if !ok {
		return ""
	}
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(strings.TrimSpace(abstract), " "))
}

func extractKeywords(text string) []string {
	block, ok := scanBlock(text, keywordStartRe, keywordStopRe)
	if !ok {
		return nil
	}
	var keywords []string
	for _, k := range keywordSplitRe.Split(strings.TrimSpace(block), -1) {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// scanBlock returns the text after the first start match that is closed by
// a line whose trimmed start matches stop, or by the end of the text. If a
// start match is never closed the next start match is tried.
func scanBlock(text string, start, stop *regexp.Regexp) (string, bool) {
	for _, loc := range start.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		offset := 0
		for {
			i := strings.IndexByte(rest[offset:], '\n')
			if i < 0 {
				break
			}
			nl := offset + i
			tail := strings.TrimLeft(rest[nl+1:], " \t\r\n\f\v")
			if tail == "" || stop.MatchString(tail) {
				return rest[:nl], true
			}
			offset = nl + 1
		}
	}
	return "", false
}

func extractVenue(text string) string {
	head := prefix(text, headerWindow)
	for _, re := range venuePatterns {
		if m := re.FindString(head); m != "" {
			return m
		}
	}
	return ""
}

// extractYear reads the year from a PDF creation date when it parses,
// otherwise the latest plausible year near the top of the page.
func extractYear(text, creationDate string) int {
	if m := pdfDateRe.FindStringSubmatch(strings.TrimSpace(creationDate)); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	year := 0
	for _, s := range headerYearRe.FindAllString(prefix(text, headerWindow), -1) {
		y, _ := strconv.Atoi(s)
		if y >= 1990 && y <= 2030 && y > year {
			year = y
		}
	}
	return year
}

func firstGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// prefix returns at most n bytes of s without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

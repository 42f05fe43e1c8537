// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// headerMatcher recognises section header lines of one section type.
type headerMatcher struct {
	kind string
	re   *regexp.Regexp
}

// compileHeaders builds one matcher per pattern, in pattern order. A header
// is an optionally numbered line holding nothing but one of the keywords.
func compileHeaders(patterns []types.SectionPattern) ([]headerMatcher, error) {
	matchers := make([]headerMatcher, 0, len(patterns))
	for _, p := range patterns {
		if len(p.Keywords) == 0 {
			continue
		}
		quoted := make([]string, len(p.Keywords))
		for i, kw := range p.Keywords {
			quoted[i] = regexp.QuoteMeta(kw)
		}
		re, err := regexp.Compile(`(?i)^\s*(?:\d+\.?\s*)?(?:` + strings.Join(quoted, "|") + `)\s*$`)
		if err != nil {
			return nil, fmt.Errorf("compiling section pattern %s: %w", p.Type, err)
		}
		matchers = append(matchers, headerMatcher{kind: p.Type, re: re})
	}
	return matchers, nil
}

// match returns the section type of a trimmed line, or "" if it is not a header.
func matchHeader(matchers []headerMatcher, line string) string {
	for _, m := range matchers {
		if m.re.MatchString(line) {
			return m.kind
		}
	}
	return ""
}

type pageLine struct {
	text string
	page int
}

type sectionStart struct {
	index int
	title string
	page  int
}

// extractSections splits the page text at header lines. Each section runs
// to the next header; the last one runs to the final page. Sections with
// no content are dropped.
func extractSections(pages []string, matchers []headerMatcher) []types.PaperSection {
	var lines []pageLine
	for pageNum, page := range pages {
		for _, line := range strings.Split(page, "\n") {
			lines = append(lines, pageLine{text: line, page: pageNum})
		}
	}

	var starts []sectionStart
	for i, l := range lines {
		clean := strings.TrimSpace(l.text)
		if matchHeader(matchers, clean) != "" {
			starts = append(starts, sectionStart{index: i, title: clean, page: l.page})
		}
	}

	var sections []types.PaperSection
	for i, s := range starts {
		endIdx, endPage := len(lines), len(pages)-1
		if i+1 < len(starts) {
			endIdx, endPage = starts[i+1].index, starts[i+1].page
		}

		body := make([]string, 0, endIdx-s.index-1)
		for _, l := range lines[s.index+1 : endIdx] {
			body = append(body, l.text)
		}
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content == "" {
			continue
		}
		sections = append(sections, types.PaperSection{
			Title:     s.title,
			Content:   content,
			Level:     1,
			PageStart: s.page,
			PageEnd:   endPage,
		})
	}
	return sections
}

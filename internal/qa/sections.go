// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const maxRelevantSections = 3

// sectionPriorities lists, per question type, the section title keywords
// to consult in order of preference.
var sectionPriorities = map[types.QuestionType][]string{
	types.QuestionContribution: {"abstract", "introduction", "conclusion"},
	types.QuestionMethodology:  {"methodology", "methods", "approach", "model"},
	types.QuestionResults:      {"results", "experiments", "evaluation"},
	types.QuestionLimitations:  {"discussion", "limitations", "conclusion"},
	types.QuestionRelatedWork:  {"related_work", "background", "literature_review"},
	types.QuestionSummary:      {"abstract", "conclusion"},
	types.QuestionDataset:      {"experiments", "evaluation", "methodology"},
	types.QuestionPerformance:  {"results", "experiments", "evaluation"},
}

func priorities(kind types.QuestionType) []string {
	if p, ok := sectionPriorities[kind]; ok {
		return p
	}
	return []string{"abstract"}
}

// priorityIndex returns the position of the first priority keyword found in
// title, or len(prio) when none is.
func priorityIndex(title string, prio []string) int {
	lower := strings.ToLower(title)
	for i, p := range prio {
		if strings.Contains(lower, strings.ReplaceAll(p, "_", " ")) {
			return i
		}
	}
	return len(prio)
}

// RelevantSections picks up to three sections for a question type. When no
// section title matches the type's keywords, abstract and introduction
// sections are used instead.
func RelevantSections(kind types.QuestionType, paper *types.ParsedPaper) []types.PaperSection {
	prio := priorities(kind)

	var out []types.PaperSection
	for _, s := range paper.Sections {
		if priorityIndex(s.Title, prio) < len(prio) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		for _, s := range paper.Sections {
			lower := strings.ToLower(s.Title)
			if strings.Contains(lower, "abstract") || strings.Contains(lower, "introduction") {
				out = append(out, s)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityIndex(out[i].Title, prio) < priorityIndex(out[j].Title, prio)
	})
	if len(out) > maxRelevantSections {
		out = out[:maxRelevantSections]
	}
	return out
}

// BuildContext joins "title\ncontent" blocks with blank lines until maxLen
// characters are used. The first block that does not fit is truncated with
// "..." when more than 100 characters of budget remain, and nothing after
// it is added.
func BuildContext(sections []types.PaperSection, maxLen int) string {
	var parts []string
	used := 0
	for _, s := range sections {
		text := s.Title + "\n" + s.Content
		n := utf8.RuneCountInString(text)
		if used+n <= maxLen {
			parts = append(parts, text)
			used += n
			continue
		}
		if remaining := maxLen - used; remaining > 100 {
			parts = append(parts, truncate(text, remaining)+"...")
		}
		break
	}
	return strings.Join(parts, "\n\n")
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// span returns s[start:end] with byte offsets clamped to the string and
// moved onto rune boundaries.
func span(s string, start, end int) string {
	start = max(start, 0)
	end = min(end, len(s))
	if start >= end {
		return ""
	}
	for start > 0 && !utf8.RuneStart(s[start]) {
		start--
	}
	for end < len(s) && !utf8.RuneStart(s[end]) {
		end++
	}
	return s[start:end]
}

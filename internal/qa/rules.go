// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	noContributionText = "The main contributions are not explicitly stated in the available sections."
	noMethodologyText  = "The methodology is not clearly described in the available sections."
	noResultsText      = "The results are not available in the provided sections."
	noSummaryText      = "This appears to be a research paper, but I couldn't extract a clear summary from the available content. Please try asking about specific aspects like methodology, results, or contributions."
	noLimitationsText  = "Limitations are not explicitly discussed in the available sections."
	noRelevantText     = "I have access to this paper but couldn't find content specifically relevant to your question. Please try asking a more specific question about the paper's methodology, results, or contributions."
	noContentText      = "I don't have access to the paper content to answer your question. Please ensure the paper was properly uploaded and processed."
)

var contributionCues = compileAll(
	`contribution[s]?\s*(?:of this work|include|are|is)`,
	`we\s*(?:propose|introduce|present|develop|contribute)`,
	`(?:main|key|primary|novel)\s*(?:contribution|novelty|innovation)`,
	`our\s*(?:approach|method|work|contribution)`,
	`(?:significance|importance).*?(?:work|research)`,
)

var limitationCues = compileAll(
	`limitation[s]?\s*(?:of|include|are|is)`,
	`(?:however|but|although).*?(?:limitation|constraint|issue)`,
	`(?:weakness|drawback|shortcoming)`,
	`future\s*work`,
	`(?:cannot|unable to|difficult to)`,
)

var (
	wordRe    = regexp.MustCompile(`\b\w+\b`)
	stopWords = map[string]bool{
		"the": true, "is": true, "at": true, "which": true, "on": true, "and": true, "a": true,
		"to": true, "are": true, "as": true, "was": true, "for": true, "with": true, "by": true,
	}
)

// answerWithRules dispatches to the rule answerer for the question type.
func answerWithRules(question string, kind types.QuestionType, sections []types.PaperSection) types.Answer {
	switch kind {
	case types.QuestionContribution:
		return answerContribution(sections)
	case types.QuestionMethodology:
		return answerMethodology(sections)
	case types.QuestionResults:
		return answerResults(sections)
	case types.QuestionSummary:
		return answerSummary(sections)
	case types.QuestionLimitations:
		return answerLimitations(sections)
	default:
		return answerGeneral(question, sections)
	}
}

// cueWindows collects the lowercased text around every cue match, before
// and after bytes either side, each window followed by a space.
func cueWindows(sections []types.PaperSection, cues []*regexp.Regexp, before, after int) string {
	var b strings.Builder
	for _, s := range sections {
		content := strings.ToLower(s.Content)
		for _, re := range cues {
			for _, loc := range re.FindAllStringIndex(content, -1) {
				b.WriteString(span(content, loc[0]-before, loc[1]+after))
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

func answerContribution(sections []types.PaperSection) types.Answer {
	found := cueWindows(sections, contributionCues, 100, 200)
	ans := types.Answer{Confidence: 0.7, AnswerType: types.QuestionContribution, Answer: noContributionText}
	if found != "" {
		ans.Answer = truncate(strings.TrimSpace(found), 500)
		ans.Evidence = truncate(found, 300)
	}
	return ans
}

func containsAny(s string, words ...string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func answerMethodology(sections []types.PaperSection) types.Answer {
	var text string
	for _, s := range sections {
		if containsAny(s.Title, "method", "approach", "model") {
			text = truncate(s.Content, 500)
			break
		}
	}
	if text == "" {
		for _, s := range sections {
			if containsAny(s.Content, "algorithm", "approach", "method", "technique") {
				text = truncate(s.Content, 500)
				break
			}
		}
	}
	ans := types.Answer{Confidence: 0.7, AnswerType: types.QuestionMethodology, Answer: noMethodologyText}
	if text != "" {
		ans.Answer = text
		ans.Evidence = truncate(text, 300)
	}
	return ans
}

func answerResults(sections []types.PaperSection) types.Answer {
	var text string
	for _, s := range sections {
		if containsAny(s.Title, "result", "experiment", "evaluation") {
			text = truncate(s.Content, 500)
			break
		}
	}
	ans := types.Answer{Confidence: 0.6, AnswerType: types.QuestionResults, Answer: noResultsText}
	if text != "" {
		ans.Answer = text
		ans.Evidence = truncate(text, 300)
	}
	return ans
}

func answerSummary(sections []types.PaperSection) types.Answer {
	var text, source string
	for _, s := range sections {
		if containsAny(s.Title, "abstract") {
			text, source = strings.TrimSpace(s.Content), s.Title
			break
		}
	}
	if text == "" {
		for _, s := range sections {
			if containsAny(s.Title, "introduction", "intro", "background") {
				text, source = strings.TrimSpace(truncate(s.Content, 800)), s.Title
				break
			}
		}
	}
	if text == "" {
		for _, s := range sections {
			if len([]rune(strings.TrimSpace(s.Content))) > 200 {
				text, source = strings.TrimSpace(truncate(s.Content, 600)), s.Title
				break
			}
		}
	}
	if text == "" && len(sections) > 0 {
		var parts []string
		for _, s := range sections[:min(3, len(sections))] {
			if len([]rune(strings.TrimSpace(s.Content))) > 50 {
				parts = append(parts, s.Content)
			}
		}
		text = strings.TrimSpace(truncate(strings.Join(parts, " "), 700))
		source = "Multiple sections"
	}
	if text == "" {
		text = noSummaryText
	}

	ans := types.Answer{
		Answer:        text,
		Confidence:    0.4,
		Evidence:      truncate(text, 300),
		SourceSection: source,
		AnswerType:    types.QuestionSummary,
	}
	if source != "" {
		ans.Confidence = 0.8
	}
	return ans
}

func answerLimitations(sections []types.PaperSection) types.Answer {
	found := cueWindows(sections, limitationCues, 50, 150)
	ans := types.Answer{Confidence: 0.6, AnswerType: types.QuestionLimitations, Answer: noLimitationsText}
	if found != "" {
		ans.Answer = truncate(strings.TrimSpace(found), 500)
		ans.Evidence = truncate(found, 300)
	}
	return ans
}

// keywords returns the distinct 3+ character words of q that are not stop
// words.
func keywords(q string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(q), -1) {
		if len([]rune(w)) > 2 && !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

// overlap is the share of keys found among the words of text.
func overlap(keys map[string]bool, text string) float64 {
	if len(keys) == 0 {
		return 0
	}
	seen := make(map[string]bool)
	hits := 0
	for _, w := range wordRe.FindAllString(text, -1) {
		if keys[w] && !seen[w] {
			seen[w] = true
			hits++
		}
	}
	return float64(hits) / float64(len(keys))
}

func answerGeneral(question string, sections []types.PaperSection) types.Answer {
	if len(sections) > 0 && len(strings.Fields(question)) <= 3 && containsAny(question, "what", "this", "that", "it") {
		var overview string
		for _, s := range sections {
			if containsAny(s.Title, "title", "abstract", "summary") {
				overview = truncate(s.Content, 800)
				break
			}
		}
		if overview == "" {
			overview = truncate(sections[0].Content, 800)
		}
		if overview != "" {
			return types.Answer{
				Answer:     "This appears to be a research paper. " + overview,
				Confidence: 0.7,
				Evidence:   truncate(overview, 300),
				AnswerType: types.QuestionGeneral,
			}
		}
	}

	keys := keywords(question)
	var (
		bestMatch   string
		bestScore   float64
		bestSection string
	)
	for _, s := range sections {
		content := strings.ToLower(s.Content)
		score := overlap(keys, content)
		if score <= bestScore {
			continue
		}
		bestScore, bestSection = score, s.Title

		var bestPara string
		var bestParaScore float64
		for _, para := range strings.Split(content, "\n\n") {
			if len([]rune(strings.TrimSpace(para))) < 50 {
				continue
			}
			if ps := overlap(keys, para); ps > bestParaScore {
				bestParaScore, bestPara = ps, para
			}
		}
		if bestPara != "" {
			bestMatch = truncate(bestPara, 600)
		} else {
			bestMatch = truncate(content, 600)
		}
	}

	ans := types.Answer{
		Evidence:      truncate(bestMatch, 300),
		SourceSection: bestSection,
		AnswerType:    types.QuestionGeneral,
	}
	switch {
	case bestMatch != "" && bestScore > 0.1:
		ans.Answer = strings.TrimSpace(bestMatch)
		ans.Confidence = min(bestScore*0.8, 0.8)
	case len(sections) > 0:
		var fallback string
		for _, s := range sections {
			if len([]rune(strings.TrimSpace(s.Content))) > 100 {
				fallback = truncate(s.Content, 500)
				break
			}
		}
		if fallback != "" {
			ans.Answer = "Based on the available content: " + strings.TrimSpace(fallback)
			ans.Confidence = 0.4
		} else {
			ans.Answer = noRelevantText
			ans.Confidence = 0.2
		}
	default:
		ans.Answer = noContentText
		ans.Confidence = 0.1
	}
	return ans
}

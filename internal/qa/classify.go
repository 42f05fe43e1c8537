// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"regexp"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// genericPhrases mark questions that ask about the paper as a whole.
var genericPhrases = []string{
	"what is this",
	"what is that",
	"what is it",
	"describe this",
	"tell me about this",
	"what does this say",
	"what is the content",
	"what is in this",
	"explain this",
	"summarize this",
}

type questionPattern struct {
	kind     types.QuestionType
	patterns []*regexp.Regexp
}

// questionPatterns are tried in order; the first match decides the type.
var questionPatterns = []questionPattern{
	{types.QuestionContribution, compileAll(
		`(?i)(main|key|primary|novel|new)\s*(contribution|novelty)`,
		`(?i)what.*?(novel|new|contribution|significance)`,
		`(?i)(significance|importance).*?(work|research|paper)`,
	)},
	{types.QuestionMethodology, compileAll(
		`(?i)(method|approach|algorithm|technique|procedure)`,
		`(?i)how.*?(implement|design|build|create|develop)`,
		`(?i)(experimental|evaluation)\s*(setup|design|protocol)`,
	)},
	{types.QuestionResults, compileAll(
		`(?i)(result|finding|outcome|performance|accuracy)`,
		`(?i)what.*?(achieve|obtain|find|discover)`,
		`(?i)(evaluation|experiment).*?(result|outcome)`,
	)},
	{types.QuestionLimitations, compileAll(
		`(?i)(limitation|weakness|constraint|problem)`,
		`(?i)what.*?(limit|constrain|prevent|issue)`,
		`(?i)(challenge|difficulty|drawback)`,
	)},
	{types.QuestionSummary, compileAll(
		`(?i)(summarize|summary|overview|abstract)`,
		`(?i)what.*?(about|discuss|cover)`,
		`(?i)(explain|describe).*?(paper|work|research)`,
	)},
	{types.QuestionDataset, compileAll(
		`(?i)(dataset|data|corpus|benchmark)`,
		`(?i)what.*?(data|dataset|corpus)`,
		`(?i)(evaluation|experiment).*?(data|dataset)`,
	)},
	{types.QuestionComparison, compileAll(
		`(?i)(compare|comparison|versus|vs|differ)`,
		`(?i)how.*?(different|similar|compare)`,
		`(?i)(baseline|previous|prior).*?(work|method)`,
	)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DetectQuestionType classifies a research question. Generic questions
// about "this" paper count as summaries; unmatched questions fall back to
// summary (short "what" questions), methodology ("how" questions) or general.
func DetectQuestionType(question string) types.QuestionType {
	q := strings.ToLower(strings.TrimSpace(question))

	for _, phrase := range genericPhrases {
		if strings.Contains(q, phrase) {
			return types.QuestionSummary
		}
	}

	for _, group := range questionPatterns {
		for _, re := range group.patterns {
			if re.MatchString(q) {
				return group.kind
			}
		}
	}

	if strings.Contains(q, "what") && len(strings.Fields(question)) <= 5 {
		return types.QuestionSummary
	}
	for _, w := range []string{"how", "method", "approach", "technique"} {
		if strings.Contains(q, w) {
			return types.QuestionMethodology
		}
	}
	return types.QuestionGeneral
}

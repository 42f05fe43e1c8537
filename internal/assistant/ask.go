// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/qa"
	"github.com/pdiddy/research-assistant/internal/telemetry"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// crossPaperCandidates is how many similar papers a library-wide question
// may be tried against.
const crossPaperCandidates = 3

// Ask answers a question about one paper, one section of it, or, with an
// empty paperID, the library. Every answer is recorded in the history.
func (a *Assistant) Ask(ctx context.Context, question, paperID, section string) (_ types.Answer, err error) {
	ctx, span := tracer.Start(ctx, "assistant.ask", trace.WithAttributes(
		attribute.String("paper.id", paperID),
		attribute.String("section", section)))
	defer func() { telemetry.End(span, err) }()

	var (
		ans      types.Answer
		answered = paperID
	)
	switch {
	case paperID != "":
		paper, err := a.paper(paperID)
		if err != nil {
			return types.Answer{}, err
		}
		if section != "" {
			ans = a.qa.AnswerSection(ctx, question, section, paper)
		} else {
			ans = a.qa.AnswerQuestion(ctx, question, paper)
		}
	default:
		ans, answered, err = a.askLibrary(ctx, question)
		if err != nil {
			return types.Answer{}, err
		}
	}
	if ans.AnswerType == "" {
		ans.AnswerType = qa.DetectQuestionType(question)
	}
	span.SetAttributes(attribute.String("question.type", string(ans.AnswerType)))
	a.metrics.Questions.WithLabelValues(string(ans.AnswerType)).Inc()

	entry := types.HistoryEntry{
		ID:         a.newID(),
		PaperID:    answered,
		Question:   question,
		Section:    section,
		Answer:     ans.Answer,
		Confidence: ans.Confidence,
		AnswerType: ans.AnswerType,
		AskedAt:    a.now().UTC(),
	}
	if err := a.store.RecordAnswer(ctx, entry); err != nil {
		a.logger.Warn("recording answer failed", zap.Error(err))
	}
	return ans, nil
}

// askLibrary answers from the most similar papers. Candidates are tried in
// similarity order until one answers with at least the confidence
// threshold; otherwise the most confident answer wins.
func (a *Assistant) askLibrary(ctx context.Context, question string) (types.Answer, string, error) {
	if a.Count() == 0 {
		return types.Answer{Answer: "No papers available to search."}, "", nil
	}
	hits, err := a.Search(ctx, question, crossPaperCandidates)
	if err != nil {
		return types.Answer{}, "", err
	}
	if len(hits) == 0 {
		return types.Answer{Answer: "No relevant papers found for this question."}, "", nil
	}

	var (
		best      types.Answer
		bestPaper *types.ParsedPaper
	)
	for i, hit := range hits {
		paper, err := a.paper(hit.PaperID)
		if err != nil {
			continue
		}
		ans := a.qa.AnswerQuestion(ctx, question, paper)
		if bestPaper == nil || ans.Confidence > best.Confidence {
			best, bestPaper = ans, paper
		}
		if ans.Confidence >= a.threshold {
			break
		}
		a.logger.Debug("low confidence answer, trying next paper",
			zap.Int("rank", i+1),
			zap.String("paper_id", paper.ID),
			zap.Float64("confidence", ans.Confidence))
	}
	if bestPaper == nil {
		return types.Answer{Answer: "No relevant papers found for this question."}, "", nil
	}
	best.Context = "Based on analysis of: " + bestPaper.Metadata.Title
	return best, bestPaper.ID, nil
}

// Summarize summarizes a section, or the whole paper when section is empty:
// title, authors, abstract and the opening of the first sections.
func (a *Assistant) Summarize(ctx context.Context, paperID, section string) (string, error) {
	paper, err := a.paper(paperID)
	if err != nil {
		return "", err
	}
	if section != "" {
		question := fmt.Sprintf("Summarize the %s section", section)
		return a.qa.AnswerSection(ctx, question, section, paper).Answer, nil
	}

	parts := []string{"Title: " + paper.Metadata.Title}
	if len(paper.Metadata.Authors) > 0 {
		parts = append(parts, "Authors: "+strings.Join(paper.Metadata.Authors, ", "))
	}
	if paper.Metadata.Abstract != "" {
		parts = append(parts, "Abstract: "+paper.Metadata.Abstract)
	}
	for i, s := range paper.Sections {
		if i == 3 {
			break
		}
		if len(s.Content) > a.minSectionLen {
			parts = append(parts, fmt.Sprintf("%s: %s...", s.Title, clip(s.Content, 200)))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

type analysisQuestion struct {
	key      string
	question string
}

var analysisQuestions = map[types.AnalysisType][]analysisQuestion{
	types.AnalysisContribution: {
		{"main_contributions", "What are the main contributions?"},
		{"novelty", "What is novel about this work?"},
		{"significance", "What is the significance of this research?"},
	},
	types.AnalysisMethodology: {
		{"methodology", "What is the methodology?"},
		{"approach", "What approach was used?"},
		{"datasets", "What datasets were used?"},
	},
	types.AnalysisResults: {
		{"results", "What are the results?"},
		{"performance", "What performance was achieved?"},
		{"limitations", "What are the limitations?"},
	},
}

// Analyze asks the fixed question set of the given analysis type.
func (a *Assistant) Analyze(ctx context.Context, paperID string, kind types.AnalysisType) (_ types.Analysis, err error) {
	ctx, span := tracer.Start(ctx, "assistant.analyze", trace.WithAttributes(
		attribute.String("paper.id", paperID),
		attribute.String("analysis.type", string(kind))))
	defer func() { telemetry.End(span, err) }()

	questions, ok := analysisQuestions[kind]
	if !ok {
		return types.Analysis{}, fmt.Errorf("%w: %q (want contribution, methodology or results)", ErrInvalidAnalysisType, kind)
	}
	paper, err := a.paper(paperID)
	if err != nil {
		return types.Analysis{}, err
	}

	out := types.Analysis{
		Type:             kind,
		Answers:          make(map[string]string, len(questions)),
		ConfidenceScores: make(map[string]float64, len(questions)),
	}
	for _, q := range questions {
		ans := a.qa.AnswerQuestion(ctx, q.question, paper)
		out.Answers[q.key] = ans.Answer
		out.ConfidenceScores[q.key] = ans.Confidence
	}
	return out, nil
}

// AnalyzeContribution reports a paper's contributions, novelty and significance.
func (a *Assistant) AnalyzeContribution(ctx context.Context, paperID string) (types.Analysis, error) {
	return a.Analyze(ctx, paperID, types.AnalysisContribution)
}

// AnalyzeMethodology reports a paper's methodology, approach and datasets.
func (a *Assistant) AnalyzeMethodology(ctx context.Context, paperID string) (types.Analysis, error) {
	return a.Analyze(ctx, paperID, types.AnalysisMethodology)
}

// AnalyzeResults reports a paper's results, performance and limitations.
func (a *Assistant) AnalyzeResults(ctx context.Context, paperID string) (types.Analysis, error) {
	return a.Analyze(ctx, paperID, types.AnalysisResults)
}

var aspectQuestions = map[string]string{
	"methodology":   "What is the methodology?",
	"contributions": "What are the main contributions?",
	"results":       "What are the results?",
	"approach":      "What approach was used?",
}

// Compare answers the same aspect question for each paper. Duplicate ids
// are compared once.
func (a *Assistant) Compare(ctx context.Context, paperIDs []string, aspect string) (_ types.Comparison, err error) {
	ctx, span := tracer.Start(ctx, "assistant.compare", trace.WithAttributes(
		attribute.StringSlice("paper.ids", paperIDs),
		attribute.String("aspect", aspect)))
	defer func() { telemetry.End(span, err) }()

	if aspect == "" {
		aspect = "methodology"
	}
	var ids []string
	seen := make(map[string]bool)
	for _, id := range paperIDs {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return types.Comparison{}, ErrTooFewPapers
	}

	question, ok := aspectQuestions[aspect]
	if !ok {
		question = fmt.Sprintf("What about %s?", aspect)
	}

	out := types.Comparison{
		Aspect: aspect,
		Order:  ids,
		Papers: make(map[string]types.ComparisonEntry, len(ids)),
	}
	var summary strings.Builder
	fmt.Fprintf(&summary, "Comparison of %d papers on %s:\n\n", len(ids), aspect)
	for _, id := range ids {
		paper, err := a.paper(id)
		if err != nil {
			return types.Comparison{}, err
		}
		ans := a.qa.AnswerQuestion(ctx, question, paper)
		out.Papers[id] = types.ComparisonEntry{
			Title:      paper.Metadata.Title,
			Analysis:   ans.Answer,
			Confidence: ans.Confidence,
		}
		fmt.Fprintf(&summary, "• %s...: %s...\n", clip(paper.Metadata.Title, 60), clip(ans.Answer, 100))
	}
	out.Summary = summary.String()
	return out, nil
}

// clip returns at most n runes of s.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

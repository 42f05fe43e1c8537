// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package qa answers questions about parsed research papers.
//
// A question is classified (contribution, methodology, results, ...), the
// sections most likely to hold the answer are selected, and either an
// extractive answer model or a set of rule-based answerers produces the
// answer with its supporting evidence.
package qa

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ModelAnswer is an extractive answer: Text was found in the context at
// byte offsets [Start, End).
type ModelAnswer struct {
	Text  string
	Score float64
	Start int
	End   int
}

// Model answers a question from a context passage.
type Model interface {
	Answer(ctx context.Context, question, passage string) (ModelAnswer, error)
}

// Answerer answers research questions about a single paper. A nil model
// means rule-based answers only.
type Answerer struct {
	model      Model
	maxContext int
	logger     *zap.Logger
}

// New returns an Answerer whose model context is capped at maxContext
// characters.
func New(model Model, maxContext int, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxContext <= 0 {
		maxContext = 2000
	}
	return &Answerer{model: model, maxContext: maxContext, logger: logger}
}

// AnswerQuestion classifies the question, gathers relevant sections and
// answers from them.
func (a *Answerer) AnswerQuestion(ctx context.Context, question string, paper *types.ParsedPaper) types.Answer {
	kind := DetectQuestionType(question)
	sections := RelevantSections(kind, paper)
	passage := BuildContext(sections, a.maxContext)
	a.logger.Debug("answering question",
		zap.String("question", question),
		zap.String("type", string(kind)),
		zap.Int("sections", len(sections)))

	if a.model == nil || passage == "" {
		return answerWithRules(question, kind, sections)
	}

	res, err := a.model.Answer(ctx, question, passage)
	if err != nil {
		a.logger.Warn("answer model failed, using rules", zap.Error(err))
		return answerWithRules(question, types.QuestionGeneral, nil)
	}
	recorded := passage
	if len([]rune(passage)) > 500 {
		recorded = truncate(passage, 500) + "..."
	}
	return types.Answer{
		Answer:     res.Text,
		Confidence: res.Score,
		Evidence:   span(passage, res.Start-100, res.End+100),
		Context:    recorded,
		AnswerType: kind,
	}
}

// AnswerSection answers a question from the first section whose title
// contains sectionName, ignoring case.
func (a *Answerer) AnswerSection(ctx context.Context, question, sectionName string, paper *types.ParsedPaper) types.Answer {
	var target *types.PaperSection
	want := strings.ToLower(sectionName)
	for i := range paper.Sections {
		if strings.Contains(strings.ToLower(paper.Sections[i].Title), want) {
			target = &paper.Sections[i]
			break
		}
	}
	if target == nil {
		return types.Answer{
			Answer:        fmt.Sprintf("Section '%s' not found in the paper.", sectionName),
			SourceSection: sectionName,
		}
	}

	page := target.PageStart
	if a.model != nil {
		passage := target.Title + "\n" + target.Content
		res, err := a.model.Answer(ctx, question, passage)
		if err == nil {
			return types.Answer{
				Answer:        res.Text,
				Confidence:    res.Score,
				Evidence:      span(passage, res.Start-50, res.End+50),
				SourceSection: target.Title,
				PageNumber:    &page,
			}
		}
		a.logger.Warn("answer model failed, quoting section", zap.String("section", target.Title), zap.Error(err))
	}

	return types.Answer{
		Answer:        truncate(target.Content, 500),
		Confidence:    0.6,
		Evidence:      truncate(target.Content, 300),
		SourceSection: target.Title,
		PageNumber:    &page,
	}
}

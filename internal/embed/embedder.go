// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns paper text and research questions into vectors.
//
// Paper titles, abstracts and questions are tagged with a marker before
// embedding ("[TITLE] ...", "[ACADEMIC QUESTION: METHODOLOGY] ...") so that
// the same words in different roles land in different places. Embedders are
// pluggable: a local feature-hashing embedder needs no network and a remote
// embedder calls an Ollama-compatible service.
package embed

import (
	"context"
	"fmt"
	"strings"
)

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Question types recognised for question embeddings.
const (
	QuestionContribution = "contribution"
	QuestionMethodology  = "methodology"
	QuestionResults      = "results"
	QuestionLimitations  = "limitations"
)

var questionKeywords = []struct {
	kind  string
	words []string
}{
	{QuestionContribution, []string{"contribution", "novel", "significance", "main"}},
	{QuestionMethodology, []string{"method", "approach", "algorithm", "technique"}},
	{QuestionResults, []string{"result", "finding", "outcome", "performance"}},
	{QuestionLimitations, []string{"limitation", "weakness", "problem", "issue"}},
}

var questionTemplates = map[string][]string{
	QuestionContribution: {
		"What is the main contribution?",
		"What are the key contributions?",
		"What is novel about this work?",
		"What is the significance of this research?",
	},
	QuestionMethodology: {
		"What is the methodology?",
		"How was the experiment conducted?",
		"What approach was used?",
		"Describe the method",
	},
	QuestionResults: {
		"What are the results?",
		"What were the findings?",
		"What did the authors discover?",
		"What are the experimental results?",
	},
	QuestionLimitations: {
		"What are the limitations?",
		"What are the weaknesses?",
		"What are the constraints?",
		"What issues does this approach have?",
	},
}

// FormatTitle tags a paper title.
func FormatTitle(title string) string { return "[TITLE] " + title }

// FormatAbstract tags an abstract. Blank abstracts get a placeholder.
func FormatAbstract(abstract string) string {
	if strings.TrimSpace(abstract) == "" {
		return "[EMPTY ABSTRACT]"
	}
	return "[ABSTRACT] " + abstract
}

// FormatSection tags a section with its title.
func FormatSection(title, content string) string {
	return fmt.Sprintf("[SECTION: %s] %s", title, content)
}

// FormatQuestion tags a question with its detected type, if any.
func FormatQuestion(question string) string {
	if kind := DetectQuestionType(question); kind != "" {
		return fmt.Sprintf("[ACADEMIC QUESTION: %s] %s", strings.ToUpper(kind), question)
	}
	return "[ACADEMIC QUESTION] " + question
}

// DetectQuestionType returns the first question type whose keywords appear
// in the question, or "" when none do.
func DetectQuestionType(question string) string {
	q := strings.ToLower(question)
	for _, group := range questionKeywords {
		for _, w := range group.words {
			if strings.Contains(q, w) {
				return group.kind
			}
		}
	}
	return ""
}

// SimilarQuestions returns template questions of the given type, or of the
// type detected from question when kind is empty.
func SimilarQuestions(question, kind string) []string {
	if kind == "" {
		kind = DetectQuestionType(question)
	}
	templates, ok := questionTemplates[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), templates...)
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder %s returned %d vectors for 1 text", e.Name(), len(vecs))
	}
	return vecs[0], nil
}

// EmbedQuestion embeds a research question with its type marker.
func EmbedQuestion(ctx context.Context, e Embedder, question string) ([]float32, error) {
	return EmbedOne(ctx, e, FormatQuestion(question))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// QuestionType classifies a research question and decides which sections
// are consulted to answer it.
type QuestionType string

const (
	QuestionContribution QuestionType = "contribution"
	QuestionMethodology  QuestionType = "methodology"
	QuestionResults      QuestionType = "results"
	QuestionLimitations  QuestionType = "limitations"
	QuestionSummary      QuestionType = "summary"
	QuestionDataset      QuestionType = "dataset"
	QuestionComparison   QuestionType = "comparison"
	QuestionRelatedWork  QuestionType = "related_work"
	QuestionPerformance  QuestionType = "performance"
	QuestionGeneral      QuestionType = "general"
)

// Answer is the response to a research question together with the
// evidence it was drawn from.
type Answer struct {
	Answer        string       `json:"answer" yaml:"answer"`
	Confidence    float64      `json:"confidence" yaml:"confidence"`
	Evidence      string       `json:"evidence" yaml:"evidence"`
	SourceSection string       `json:"source_section,omitempty" yaml:"source_section,omitempty"`
	PageNumber    *int         `json:"page_number,omitempty" yaml:"page_number,omitempty"`
	Context       string       `json:"context,omitempty" yaml:"context,omitempty"`
	AnswerType    QuestionType `json:"answer_type,omitempty" yaml:"answer_type,omitempty"`
}

// HistoryEntry records one answered question.
type HistoryEntry struct {
	ID         string       `json:"id" yaml:"id"`
	PaperID    string       `json:"paper_id,omitempty" yaml:"paper_id,omitempty"`
	Question   string       `json:"question" yaml:"question"`
	Section    string       `json:"section,omitempty" yaml:"section,omitempty"`
	Answer     string       `json:"answer" yaml:"answer"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
	AnswerType QuestionType `json:"answer_type,omitempty" yaml:"answer_type,omitempty"`
	AskedAt    time.Time    `json:"asked_at" yaml:"asked_at"`
}

// AnalysisType selects one of the canned multi-question analyses.
type AnalysisType string

const (
	AnalysisContribution AnalysisType = "contribution"
	AnalysisMethodology  AnalysisType = "methodology"
	AnalysisResults      AnalysisType = "results"
)

// Analysis is the outcome of asking a fixed set of questions about one
// paper. Answers and ConfidenceScores share keys.
type Analysis struct {
	Type             AnalysisType       `json:"analysis_type" yaml:"analysis_type"`
	Answers          map[string]string  `json:"answers" yaml:"answers"`
	ConfidenceScores map[string]float64 `json:"confidence_scores" yaml:"confidence_scores"`
}

// ComparisonEntry is one paper's side of a comparison.
type ComparisonEntry struct {
	Title      string  `json:"title" yaml:"title"`
	Analysis   string  `json:"analysis" yaml:"analysis"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Comparison holds per-paper answers for one aspect plus a text summary.
// Order preserves the order the paper IDs were given in.
type Comparison struct {
	Aspect  string                     `json:"aspect" yaml:"aspect"`
	Order   []string                   `json:"order" yaml:"order"`
	Papers  map[string]ComparisonEntry `json:"papers" yaml:"papers"`
	Summary string                     `json:"comparison_summary" yaml:"comparison_summary"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestDetectQuestionType(t *testing.T) {
	tests := []struct {
		question string
		want     types.QuestionType
	}{
		{"What is this?", types.QuestionSummary},
		{"Tell me about this paper", types.QuestionSummary},
		{"What are the main contributions?", types.QuestionContribution},
		{"What is novel about this work?", types.QuestionContribution},
		{"Which algorithm do they use?", types.QuestionMethodology},
		{"How did they build the system?", types.QuestionMethodology},
		{"How good is the accuracy?", types.QuestionResults},
		{"Any drawback worth noting?", types.QuestionLimitations},
		{"Give an overview", types.QuestionSummary},
		{"Which corpus was used?", types.QuestionDataset},
		{"Is it better than the baseline work?", types.QuestionComparison},
		{"What year?", types.QuestionSummary},
		{"Who are the authors of the paper listed here?", types.QuestionGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectQuestionType(tt.question))
		})
	}
}

func TestDetectQuestionType_PatternOrder(t *testing.T) {
	// "what ... novel" is a contribution pattern and wins over later groups.
	assert.Equal(t, types.QuestionContribution, DetectQuestionType("what was novel in the method"))
	assert.Equal(t, types.QuestionMethodology, DetectQuestionType("which technique gives the best results"))
}

func samplePaper() *types.ParsedPaper {
	return &types.ParsedPaper{
		Sections: []types.PaperSection{
			{Title: "Abstract", Content: "We propose a retrieval model for papers. It answers questions.", PageStart: 0},
			{Title: "1. Introduction", Content: "Question answering over scientific text is hard.", PageStart: 0},
			{Title: "2. Methods", Content: "Our approach embeds sections with a transformer.", PageStart: 1},
			{Title: "3. Results", Content: "Accuracy improves by 5 points on the benchmark.", PageStart: 2},
			{Title: "4. Conclusion", Content: "However, one limitation is the small dataset. Future work will scale up.", PageStart: 3},
		},
	}
}

func titles(sections []types.PaperSection) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Title
	}
	return out
}

func TestRelevantSections(t *testing.T) {
	paper := samplePaper()

	assert.Equal(t, []string{"Abstract", "1. Introduction", "4. Conclusion"},
		titles(RelevantSections(types.QuestionContribution, paper)))
	assert.Equal(t, []string{"2. Methods"}, titles(RelevantSections(types.QuestionMethodology, paper)))
	assert.Equal(t, []string{"Abstract", "4. Conclusion"}, titles(RelevantSections(types.QuestionSummary, paper)))
	// no related-work sections: fall back to abstract and introduction
	assert.Equal(t, []string{"Abstract", "1. Introduction"}, titles(RelevantSections(types.QuestionRelatedWork, paper)))
	assert.Equal(t, []string{"Abstract"}, titles(RelevantSections(types.QuestionGeneral, paper)))
}

func TestRelevantSections_SortsByPriority(t *testing.T) {
	paper := &types.ParsedPaper{Sections: []types.PaperSection{
		{Title: "Conclusion"}, {Title: "Introduction"}, {Title: "Abstract"}, {Title: "Introduction II"},
	}}
	assert.Equal(t, []string{"Abstract", "Introduction", "Introduction II"},
		titles(RelevantSections(types.QuestionContribution, paper)))
}

func TestBuildContext(t *testing.T) {
	sections := []types.PaperSection{
		{Title: "A", Content: strings.Repeat("a", 48)},  // 50 chars with title
		{Title: "B", Content: strings.Repeat("b", 298)}, // 300 chars
		{Title: "C", Content: "never reached"},
	}
	assert.Equal(t, "A\n"+strings.Repeat("a", 48), BuildContext(sections, 100))

	got := BuildContext(sections, 200)
	assert.Equal(t, "A\n"+strings.Repeat("a", 48)+"\n\nB\n"+strings.Repeat("b", 148)+"...", got)

	assert.Empty(t, BuildContext(nil, 100))
}

func TestRuleAnswers(t *testing.T) {
	ctx := context.Background()
	a := New(nil, 2000, nil)
	paper := samplePaper()

	contrib := a.AnswerQuestion(ctx, "What are the main contributions?", paper)
	assert.Equal(t, types.QuestionContribution, contrib.AnswerType)
	assert.InDelta(t, 0.7, contrib.Confidence, 1e-9)
	assert.Contains(t, contrib.Answer, "we propose a retrieval model")

	method := a.AnswerQuestion(ctx, "Which algorithm do they use?", paper)
	assert.Equal(t, "Our approach embeds sections with a transformer.", method.Answer)
	assert.InDelta(t, 0.7, method.Confidence, 1e-9)

	results := a.AnswerQuestion(ctx, "How good is the accuracy?", paper)
	assert.Equal(t, "Accuracy improves by 5 points on the benchmark.", results.Answer)
	assert.InDelta(t, 0.6, results.Confidence, 1e-9)

	summary := a.AnswerQuestion(ctx, "What is this?", paper)
	assert.Equal(t, "We propose a retrieval model for papers. It answers questions.", summary.Answer)
	assert.Equal(t, "Abstract", summary.SourceSection)
	assert.InDelta(t, 0.8, summary.Confidence, 1e-9)

	limits := a.AnswerQuestion(ctx, "Any drawback worth noting?", paper)
	assert.Equal(t, types.QuestionLimitations, limits.AnswerType)
	assert.Contains(t, limits.Answer, "limitation is the small dataset")
	assert.Contains(t, limits.Answer, "future work")
}

func TestRuleAnswers_Fallbacks(t *testing.T) {
	assert.Equal(t, noContributionText, answerContribution(nil).Answer)
	assert.Equal(t, noMethodologyText, answerMethodology(nil).Answer)
	assert.Equal(t, noResultsText, answerResults(nil).Answer)
	assert.Equal(t, noLimitationsText, answerLimitations(nil).Answer)

	empty := answerSummary(nil)
	assert.Equal(t, noSummaryText, empty.Answer)
	assert.InDelta(t, 0.4, empty.Confidence, 1e-9)

	multi := answerSummary([]types.PaperSection{
		{Title: "Setup", Content: strings.Repeat("x", 60)},
		{Title: "Notes", Content: "short"},
	})
	assert.Equal(t, "Multiple sections", multi.SourceSection)
	assert.Equal(t, strings.Repeat("x", 60), multi.Answer)
}

func TestGeneralAnswer(t *testing.T) {
	sections := []types.PaperSection{
		{Title: "Intro", Content: "Short intro."},
		{Title: "Training", Content: "Preamble.\n\nThe optimizer schedule uses warmup with cosine decay over many training steps."},
	}

	got := answerGeneral("Which optimizer schedule was chosen?", sections)
	assert.Equal(t, "the optimizer schedule uses warmup with cosine decay over many training steps.", got.Answer)
	assert.Equal(t, "Training", got.SourceSection)
	// keywords: optimizer, schedule, chosen -> 2 of 3 match
	assert.InDelta(t, 2.0/3.0*0.8, got.Confidence, 1e-9)

	overview := answerGeneral("what is it", sections)
	assert.Equal(t, "This appears to be a research paper. Short intro.", overview.Answer)
	assert.InDelta(t, 0.7, overview.Confidence, 1e-9)

	unrelated := answerGeneral("Explain quantum chromodynamics thoroughly please", sections)
	assert.Equal(t, noRelevantText, unrelated.Answer)
	assert.InDelta(t, 0.2, unrelated.Confidence, 1e-9)

	nothing := answerGeneral("Explain quantum chromodynamics thoroughly please", nil)
	assert.Equal(t, noContentText, nothing.Answer)
	assert.InDelta(t, 0.1, nothing.Confidence, 1e-9)

	long := []types.PaperSection{{Title: "Body", Content: strings.Repeat("word ", 30)}}
	based := answerGeneral("Explain quantum chromodynamics thoroughly please", long)
	assert.True(t, strings.HasPrefix(based.Answer, "Based on the available content: word"))
	assert.InDelta(t, 0.4, based.Confidence, 1e-9)
}

type fakeModel struct {
	answer ModelAnswer
	err    error
	calls  int
}

func (f *fakeModel) Answer(_ context.Context, _, passage string) (ModelAnswer, error) {
	f.calls++
	if f.err != nil {
		return ModelAnswer{}, f.err
	}
	a := f.answer
	if i := strings.Index(passage, a.Text); i >= 0 {
		a.Start, a.End = i, i+len(a.Text)
	}
	return a, nil
}

func TestAnswerQuestion_WithModel(t *testing.T) {
	ctx := context.Background()
	m := &fakeModel{answer: ModelAnswer{Text: "a transformer", Score: 0.91}}
	a := New(m, 2000, nil)

	got := a.AnswerQuestion(ctx, "Which algorithm do they use?", samplePaper())
	assert.Equal(t, "a transformer", got.Answer)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
	assert.Equal(t, "2. Methods\nOur approach embeds sections with a transformer.", got.Evidence)
	assert.Equal(t, got.Evidence, got.Context)
	assert.Equal(t, types.QuestionMethodology, got.AnswerType)

	m.err = errors.New("down")
	fallback := a.AnswerQuestion(ctx, "Which algorithm do they use?", samplePaper())
	assert.Equal(t, noContentText, fallback.Answer)

	// no context, no model call
	m.calls = 0
	a.AnswerQuestion(ctx, "Which algorithm?", &types.ParsedPaper{})
	assert.Zero(t, m.calls)
}

func TestAnswerQuestion_TruncatesRecordedContext(t *testing.T) {
	paper := &types.ParsedPaper{Sections: []types.PaperSection{
		{Title: "Methods", Content: strings.Repeat("m", 900)},
	}}
	a := New(&fakeModel{answer: ModelAnswer{Text: "mmm", Score: 0.5}}, 2000, nil)
	got := a.AnswerQuestion(context.Background(), "Which method?", paper)
	assert.Len(t, got.Context, 503)
	assert.True(t, strings.HasSuffix(got.Context, "..."))
}

func TestAnswerSection(t *testing.T) {
	ctx := context.Background()
	a := New(nil, 2000, nil)
	paper := samplePaper()

	got := a.AnswerSection(ctx, "What happened?", "results", paper)
	assert.Equal(t, "Accuracy improves by 5 points on the benchmark.", got.Answer)
	assert.Equal(t, "3. Results", got.SourceSection)
	require.NotNil(t, got.PageNumber)
	assert.Equal(t, 2, *got.PageNumber)
	assert.InDelta(t, 0.6, got.Confidence, 1e-9)

	missing := a.AnswerSection(ctx, "?", "Appendix", paper)
	assert.Equal(t, "Section 'Appendix' not found in the paper.", missing.Answer)
	assert.Zero(t, missing.Confidence)
	assert.Nil(t, missing.PageNumber)

	withModel := New(&fakeModel{answer: ModelAnswer{Text: "5 points", Score: 0.8}}, 2000, nil)
	ans := withModel.AnswerSection(ctx, "By how much?", "Results", paper)
	assert.Equal(t, "5 points", ans.Answer)
	assert.Equal(t, "3. Results\nAccuracy improves by 5 points on the benchmark.", ans.Evidence)
}

func TestClaudeModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Which dataset?")

		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{
			{Type: "text", Text: "```json\n{\"answer\": \"the ACL corpus\", \"score\": 1.4}\n```"},
		}})
	}))
	defer srv.Close()

	orig := claudeAPIURL
	claudeAPIURL = srv.URL
	defer func() { claudeAPIURL = orig }()

	m := NewClaudeModel("test-key", "claude-test", 1, 0)
	got, err := m.Answer(context.Background(), "Which dataset?", "We train on the ACL corpus.")
	require.NoError(t, err)
	assert.Equal(t, ModelAnswer{Text: "the ACL corpus", Score: 1, Start: 12, End: 26}, got)
}

func claudeStub(t *testing.T, status int, reply string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{{Type: "text", Text: reply}}})
	}))
	orig := claudeAPIURL
	claudeAPIURL = srv.URL
	t.Cleanup(func() {
		claudeAPIURL = orig
		srv.Close()
	})
}

func TestClaudeModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		reply   string
		wantErr string
	}{
		{"empty answer", http.StatusOK, `{"answer": "", "score": 0}`, ErrEmptyAnswer.Error()},
		{"not json", http.StatusOK, "not json", "parsing AI response JSON"},
		{"bad status", http.StatusBadRequest, "{}", "Claude API returned 400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claudeStub(t, tt.status, tt.reply)
			m := &ClaudeModel{APIKey: "k", Model: "m", MaxRetries: 1}
			_, err := m.Answer(context.Background(), "q", "passage")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestModelFromConfig(t *testing.T) {
	cfg := types.DefaultConfig().Models
	m, err := ModelFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, m)

	cfg.QABackend = types.QAClaude
	_, err = ModelFromConfig(cfg)
	assert.Error(t, err)

	cfg.QA.APIKey = "k"
	m, err = ModelFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeModel{}, m)

	cfg.QABackend = "bert"
	_, err = ModelFromConfig(cfg)
	assert.Error(t, err)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// answerPromptTmpl asks for an extractive answer: a span copied verbatim
// from the passage plus a confidence score.
var answerPromptTmpl = template.Must(template.New("answer").Parse(`You are an extractive question answering system for academic papers. Read the passage and answer the question by copying the shortest span of the passage that answers it. Do not paraphrase and do not add words that are not in the passage.

Respond with a JSON object with two fields:
- answer: the exact span from the passage
- score: a float between 0.0 and 1.0 indicating how confident you are that the span answers the question

If the passage does not contain an answer, respond with {"answer": "", "score": 0}. Do not include any text outside the JSON object.

Question:
{{.Question}}

Passage:
{{.Passage}}
`))

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// ErrEmptyAnswer is returned when the model finds no answer in the passage.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// ClaudeModel answers questions through the Claude Messages API.
type ClaudeModel struct {
	APIKey     string
	Model      string
	MaxRetries int
	Client     *http.Client

	breaker *gobreaker.CircuitBreaker
}

// NewClaudeModel returns a model guarded by a circuit breaker that opens
// after three consecutive failures.
func NewClaudeModel(apiKey, model string, maxRetries int, timeout time.Duration) *ClaudeModel {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ClaudeModel{
		APIKey:     apiKey,
		Model:      model,
		MaxRetries: maxRetries,
		Client:     &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "claude-qa",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type extractiveAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// Answer asks the model for a span of passage that answers question and
// locates the span in the passage.
func (c *ClaudeModel) Answer(ctx context.Context, question, passage string) (ModelAnswer, error) {
	call := func() (interface{}, error) { return c.call(ctx, question, passage) }
	var (
		res interface{}
		err error
	)
	if c.breaker != nil {
		res, err = c.breaker.Execute(call)
	} else {
		res, err = call()
	}
	if err != nil {
		return ModelAnswer{}, err
	}

	ea := res.(extractiveAnswer)
	text := strings.TrimSpace(ea.Answer)
	if text == "" {
		return ModelAnswer{}, ErrEmptyAnswer
	}
	ans := ModelAnswer{Text: text, Score: clamp01(ea.Score)}
	if i := strings.Index(passage, text); i >= 0 {
		ans.Start, ans.End = i, i+len(text)
	} else if i := strings.Index(strings.ToLower(passage), strings.ToLower(text)); i >= 0 && len(strings.ToLower(passage)) == len(passage) {
		ans.Start, ans.End = i, i+len(text)
	}
	return ans, nil
}

func (c *ClaudeModel) call(ctx context.Context, question, passage string) (extractiveAnswer, error) {
	prompt, err := renderPrompt(question, passage)
	if err != nil {
		return extractiveAnswer{}, fmt.Errorf("rendering prompt: %w", err)
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     c.Model,
		MaxTokens: 1024,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return extractiveAnswer{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return extractiveAnswer{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return extractiveAnswer{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return extractiveAnswer{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return extractiveAnswer{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		var ea extractiveAnswer
		if err := json.Unmarshal([]byte(stripFences(block.Text)), &ea); err != nil {
			return extractiveAnswer{}, fmt.Errorf("parsing AI response JSON: %w", err)
		}
		return ea, nil
	}
	return extractiveAnswer{}, fmt.Errorf("no text content in Claude API response")
}

func renderPrompt(question, passage string) (string, error) {
	var buf bytes.Buffer
	err := answerPromptTmpl.Execute(&buf, struct{ Question, Passage string }{question, passage})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// stripFences removes a Markdown code fence around a JSON reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}

// ModelFromConfig returns the configured answer model, or nil for
// rule-based answering.
func ModelFromConfig(cfg types.ModelConfig) (Model, error) {
	switch cfg.QABackend {
	case types.QARules, "":
		return nil, nil
	case types.QAClaude:
		if cfg.QA.APIKey == "" {
			return nil, errors.New("qa backend claude needs an API key (.secrets/anthropic-api-key)")
		}
		return NewClaudeModel(cfg.QA.APIKey, cfg.QA.Model, cfg.QA.MaxRetries, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown qa backend %q", cfg.QABackend)
	}
}

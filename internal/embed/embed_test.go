// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, "[TITLE] Attention", FormatTitle("Attention"))
	assert.Equal(t, "[ABSTRACT] We study.", FormatAbstract("We study."))
	assert.Equal(t, "[EMPTY ABSTRACT]", FormatAbstract("  "))
	assert.Equal(t, "[SECTION: Methods] We do.", FormatSection("Methods", "We do."))
	assert.Equal(t, "[ACADEMIC QUESTION: METHODOLOGY] Which algorithm?", FormatQuestion("Which algorithm?"))
	assert.Equal(t, "[ACADEMIC QUESTION] Who wrote it?", FormatQuestion("Who wrote it?"))
}

func TestDetectQuestionType(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"What is the main idea?", QuestionContribution},
		{"Which technique was used?", QuestionMethodology},
		{"How good is the performance?", QuestionResults},
		{"Any weakness?", QuestionLimitations},
		// contribution keywords are checked first
		{"What is the main method?", QuestionContribution},
		{"Who funded this?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectQuestionType(tt.question))
		})
	}
}

func TestSimilarQuestions(t *testing.T) {
	got := SimilarQuestions("What were the results?", "")
	require.Len(t, got, 4)
	assert.Equal(t, "What are the results?", got[0])

	assert.Equal(t, "Describe the method", SimilarQuestions("anything", QuestionMethodology)[3])
	assert.Nil(t, SimilarQuestions("Who funded this?", ""))

	got[0] = "changed"
	assert.Equal(t, "What are the results?", SimilarQuestions("", QuestionResults)[0])
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(64, 0)
	assert.Equal(t, 64, h.Dimension())

	vecs, err := h.Embed(ctx, []string{"attention is all you need", "Attention is all you need!", "", "protein folding"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Equal(t, vecs[0], vecs[1], "case and punctuation do not matter")
	assert.InDelta(t, 1, norm(vecs[0]), 1e-5)
	assert.Equal(t, make([]float32, 64), vecs[2])

	same, err := vector.Cosine(vecs[0], vecs[1])
	require.NoError(t, err)
	other, err := vector.Cosine(vecs[0], vecs[3])
	require.NoError(t, err)
	assert.Greater(t, same, other)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.Embed(cancelled, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashEmbedderTruncates(t *testing.T) {
	h := NewHashEmbedder(32, 2)
	vecs, err := h.Embed(context.Background(), []string{"alpha beta", "alpha beta gamma delta"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], vecs[1])
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return s
}

func ollamaServer(t *testing.T, dim int, calls *atomic.Int32, fail *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/embed", r.URL.Path)
		if fail != nil && fail.Load() > 0 {
			fail.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := ollamaResponse{Model: req.Model}
		for i := range req.Input {
			v := make([]float32, dim)
			v[i%dim] = 1
			resp.Embeddings = append(resp.Embeddings, v)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOllamaEmbedder(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond
	var calls, fail atomic.Int32
	fail.Store(1)
	srv := ollamaServer(t, 3, &calls, &fail)
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{URL: srv.URL + "/", Model: "nomic", Dimension: 3, BatchSize: 2}, nil)
	assert.Equal(t, "nomic", o.Name())

	vecs, err := o.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 0, 0}, vecs[2])
	// one retried 503 plus two batches
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	srv := ollamaServer(t, 4, &calls, nil)
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "m", Dimension: 3}, nil)
	_, err := o.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension 4, want 3")
}

func TestOllamaEmbedderBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{URL: srv.URL, Model: "m"}, nil)
	for range 5 {
		_, err := o.Embed(context.Background(), []string{"a"})
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), calls.Load(), "breaker stops calls after three failures")
}

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int { return 2 }
func (c *countingEmbedder) Name() string   { return "counting" }

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenCache) Set(context.Context, string, []float32) error { return errors.New("down") }

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, NewMemoryCache(time.Hour), nil)

	first, err := c.Embed(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	second, err := c.Embed(ctx, []string{"bbb", "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"aa", "bbb", "c"}, inner.texts)
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, []float32{1, 1}, second[1])
	assert.Equal(t, "counting", c.Name())
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, brokenCache{}, nil)
	vecs, err := c.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)

	inner.err = errors.New("model down")
	_, err = c.Embed(context.Background(), []string{"y"})
	assert.ErrorContains(t, err, "model down")
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []float32{1}))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "emb:m:5d41402abc4b2a76b9719d911017c592", CacheKey("m", "hello"))
}

func TestEncodePaper(t *testing.T) {
	inner := &countingEmbedder{}
	paper := &types.ParsedPaper{
		Metadata: types.PaperMetadata{Title: "T"},
		Sections: []types.PaperSection{
			{Title: "Intro", Content: "a"},
			{Title: "Methods", Content: "bb"},
			{Title: "Results", Content: "ccc"},
		},
	}
	got, err := EncodePaper(context.Background(), inner, paper, 2)
	require.NoError(t, err)

	assert.Equal(t, []float32{9, 1}, got.Title) // "[TITLE] T"
	assert.Nil(t, got.Abstract)
	require.Len(t, got.Sections, 3)
	assert.Equal(t, []float32{7, 1}, got.Sections[0])  // "Intro a"
	assert.Equal(t, []float32{10, 1}, got.Sections[1]) // "Methods bb"
	assert.Equal(t, []float32{11, 1}, got.Sections[2]) // "Results ccc"
}

func TestEncodePaperError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	_, err := EncodePaper(context.Background(), inner, &types.ParsedPaper{Metadata: types.PaperMetadata{Title: "T"}}, 2)
	assert.ErrorContains(t, err, "embedding title")
}

func TestFromConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Database.CacheEnabled = false
	e, err := FromConfig(context.Background(), cfg.Models, cfg.Database, nil)
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	cfg.Database.CacheEnabled = true
	e, err = FromConfig(context.Background(), cfg.Models, cfg.Database, nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)
	assert.Equal(t, 768, e.Dimension())

	cfg.Models.EmbeddingBackend = "bert"
	_, err = FromConfig(context.Background(), cfg.Models, cfg.Database, nil)
	assert.Error(t, err)
}

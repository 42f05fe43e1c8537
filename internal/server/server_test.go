// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/internal/parser"
	"github.com/pdiddy/research-assistant/internal/qa"
	"github.com/pdiddy/research-assistant/internal/store"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const samplePaper = `Attention Based Networks for Neural Machine Translation
Ashish Vaswani and Noam Shazeer
Abstract
We propose the Transformer, a network
built on attention for translation.
Keywords: attention, translation
1. Introduction
` + "\f" + `Recurrent models process tokens one step at a time, which limits parallel training on long sequences.
Methods
The encoder maps the input sequence to continuous representations using stacked self-attention layers.
Results
The big model reaches 28.4 BLEU on the English to German newstest2014 translation task.
`

const sampleTitle = "Attention Based Networks for Neural Machine Translation"

type fixture struct {
	srv *Server
	a   *assistant.Assistant
	h   http.Handler
}

func newFixture(t *testing.T, mutate func(*types.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := types.DefaultConfig()
	cfg.Processing.ProcessedDir = filepath.Join(dir, "processed")
	cfg.Processing.TempDir = filepath.Join(dir, "temp")
	cfg.Database.MetadataDBPath = filepath.Join(dir, "papers.db")
	cfg.API.RateLimitEnabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := parser.New(cfg.Processing, types.DefaultSectionPatterns(), convert.TextExtractor{}, nil)
	require.NoError(t, err)
	st, err := store.Open(cfg.Database.MetadataDBPath, 20)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	a, err := assistant.New(context.Background(), cfg, assistant.Deps{
		Parser:   p,
		Embedder: embed.NewHashEmbedder(64, 512),
		QA:       qa.New(nil, 2000, nil),
		Store:    st,
		Index:    vector.NewMemoryIndex(),
		Metrics:  assistant.NewMetrics(reg),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv := New(a, cfg, Options{Version: "test", Logger: zap.NewNop(), Registerer: reg, Gatherer: reg})
	return &fixture{srv: srv, a: a, h: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) upload(t *testing.T, filename, content, paperID string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if paperID != "" {
		require.NoError(t, mw.WriteField("paper_id", paperID))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/papers/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	root := decodeBody(t, rec)
	assert.Equal(t, ServiceName, root["service"])
	assert.Equal(t, "test", root["version"])
	assert.Contains(t, root["endpoints"], "ask")

	rec = f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody(t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(0), health["papers"])
}

func TestUploadInfoListDelete(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.upload(t, "attention.txt", samplePaper, "attn", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decodeBody(t, rec)
	assert.Equal(t, "attn", up["paper_id"])
	assert.Equal(t, "attention.txt", up["filename"])

	rec = f.do(t, http.MethodGet, "/papers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	assert.Equal(t, float64(1), list["count"])

	for _, path := range []string{"/papers/attn", "/api/v1/papers/attn"} {
		rec = f.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var info types.PaperInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, sampleTitle, info.Title)
	}

	rec = f.do(t, http.MethodDelete, "/papers/attn", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paper attn deleted successfully", decodeBody(t, rec)["message"])

	rec = f.do(t, http.MethodGet, "/papers/attn", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "paper not found")
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, func(c *types.Config) { c.Processing.MaxFileSize = 1024 })

	rec := f.upload(t, "notes.docx", "hello", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "Unsupported file type")

	rec = f.upload(t, "big.txt", strings.Repeat("x", 2000), "", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = f.do(t, http.MethodPost, "/papers/upload", map[string]string{"file": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskSummarizeAnalyzeCompare(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.upload(t, "a.txt", samplePaper, "a", nil).Code)
	require.Equal(t, http.StatusOK, f.upload(t, "b.txt", samplePaper, "b", nil).Code)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{"ask paper", "/papers/ask", map[string]string{"question": "What BLEU score?", "paper_id": "a", "section": "results"}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Contains(t, b["answer"], "28.4 BLEU") }},
		{"ask missing question", "/papers/ask", map[string]string{"paper_id": "a"}, http.StatusBadRequest, nil},
		{"ask unknown paper", "/papers/ask", map[string]string{"question": "What?", "paper_id": "zzz"}, http.StatusNotFound, nil},
		{"ask library", "/papers/ask", map[string]string{"question": "attention for translation"}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Equal(t, "Based on analysis of: "+sampleTitle, b["context"]) }},
		{"summarize", "/papers/summarize", map[string]string{"paper_id": "a"}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Contains(t, b["summary"], "Title: "+sampleTitle) }},
		{"summarize without id", "/papers/summarize", map[string]string{}, http.StatusBadRequest, nil},
		{"analyze", "/papers/analyze", map[string]string{"paper_id": "a", "analysis_type": "methodology"}, http.StatusOK,
			func(t *testing.T, b map[string]any) {
				assert.Equal(t, "success", b["status"])
				assert.Equal(t, "methodology", b["analysis_type"])
			}},
		{"analyze default type", "/papers/analyze", map[string]string{"paper_id": "a"}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Equal(t, "contribution", b["analysis_type"]) }},
		{"analyze bad type", "/papers/analyze", map[string]string{"paper_id": "a", "analysis_type": "vibes"}, http.StatusBadRequest, nil},
		{"compare", "/papers/compare", map[string]any{"paper_ids": []string{"a", "b"}, "aspect": "results"}, http.StatusOK,
			func(t *testing.T, b map[string]any) {
				assert.Equal(t, "results", b["aspect"])
				assert.Contains(t, b["comparison_summary"], "Comparison of 2 papers on results")
			}},
		{"compare too few", "/papers/compare", map[string]any{"paper_ids": []string{"a"}}, http.StatusBadRequest, nil},
		{"search", "/papers/search", map[string]any{"query": "attention translation", "limit": 1}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Equal(t, float64(1), b["count"]) }},
		{"search sections", "/papers/search", map[string]any{"query": "BLEU", "sections": true}, http.StatusOK,
			func(t *testing.T, b map[string]any) { assert.Equal(t, float64(2), b["count"]) }},
		{"search empty", "/papers/search", map[string]any{}, http.StatusBadRequest, nil},
		{"fetch disabled", "/papers/fetch", map[string]string{"identifier": "1706.03762"}, http.StatusNotImplemented, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tt.status != http.StatusOK {
				assert.NotEmpty(t, body["detail"])
				return
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/papers/ask", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "Invalid request body")
}

func TestHistoryAndExport(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.upload(t, "a.txt", samplePaper, "a", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/papers/ask",
		map[string]string{"question": "What method is used?", "paper_id": "a"}, nil).Code)

	rec := f.do(t, http.MethodGet, "/papers/a/history?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeBody(t, rec)
	assert.Equal(t, "a", hist["paper_id"])
	assert.Len(t, hist["history"], 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/papers/a/history?limit=x", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/papers/zzz/history", nil, nil).Code)

	rec = f.do(t, http.MethodGet, "/papers/a/export?format=bibtex", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-bibtex", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="a.bib"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "@")

	rec = f.do(t, http.MethodGet, "/papers/a/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), sampleTitle)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/papers/a/export?format=docx", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/papers/zzz/export", nil, nil).Code)
}

func TestUploadKeepsOriginalFileName(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.upload(t, "attention.txt", samplePaper, "attn", nil).Code)

	papers := f.a.Papers()
	require.Len(t, papers, 1)
	assert.Equal(t, "attention.txt", papers[0].SourcePath)

	rec := f.do(t, http.MethodGet, "/papers/attn/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "upload-")
}

func TestNotFoundAndMethod(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeBody(t, rec)["detail"])

	rec = f.do(t, http.MethodPut, "/papers", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	f := newFixture(t, func(c *types.Config) {
		c.API.AuthEnabled = true
		c.API.JWTSecret = "s3cret"
	})
	bearer := func(tok string) http.Header { return http.Header{"Authorization": {"Bearer " + tok}} }

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	issued, err := IssueToken("s3cret", "cli", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"not bearer", http.Header{"Authorization": {"Basic abc"}}, http.StatusUnauthorized},
		{"wrong secret", bearer(signToken(t, jwt.SigningMethodHS256, "other")), http.StatusUnauthorized},
		{"wrong algorithm", bearer(signToken(t, jwt.SigningMethodHS512, "s3cret")), http.StatusUnauthorized},
		{"expired", bearer(expired), http.StatusUnauthorized},
		{"valid", bearer(signToken(t, jwt.SigningMethodHS256, "s3cret")), http.StatusOK},
		{"issued", bearer(issued), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/papers", nil, tt.header)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/health", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/papers", nil, nil).Code)
}

func TestExempt(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/", true},
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/metrics", true},
		{http.MethodGet, "/api/v1", true},
		{http.MethodGet, "/api/v1/", true},
		{http.MethodGet, "/api/v1/health", true},
		{http.MethodGet, "/api/v1health", false},
		{http.MethodGet, "/api/v2/health", false},
		{http.MethodGet, "/papers", false},
		{http.MethodGet, "/api/v1/papers", false},
		{http.MethodOptions, "/papers", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.srv.exempt(httptest.NewRequest(tt.method, tt.path, nil)))
		})
	}
}

func TestIssueTokenEmptySecret(t *testing.T) {
	_, err := IssueToken("", "cli", time.Hour)
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(c *types.Config) {
		c.API.RateLimitEnabled = true
		c.API.RateLimitRequests = 2
		c.API.RateLimitWindow = time.Hour
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/papers", nil, nil).Code)
	}
	rec := f.do(t, http.MethodGet, "/papers", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/health", nil, nil).Code)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/papers", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	other := httptest.NewRecorder()
	f.h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestIPLimiterRefills(t *testing.T) {
	l := newIPLimiter(2, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.reserve("a")
	assert.True(t, ok)
	ok, _ = l.reserve("a")
	assert.True(t, ok)
	ok, wait := l.reserve("a")
	assert.False(t, ok)
	assert.InDelta(t, float64(30*time.Second), float64(wait), float64(time.Millisecond))

	now = now.Add(30 * time.Second)
	ok, _ = l.reserve("a")
	assert.True(t, ok)

	now = now.Add(5 * time.Minute)
	l.reserve("b")
	l.mu.Lock()
	assert.NotContains(t, l.buckets, "a")
	l.mu.Unlock()
}

func TestCORS(t *testing.T) {
	f := newFixture(t, func(c *types.Config) { c.API.CORSOrigins = []string{"http://localhost:8501"} })

	pre := f.do(t, http.MethodOptions, "/papers/ask", nil, http.Header{
		"Origin":                        {"http://localhost:8501"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "http://localhost:8501", pre.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, pre.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec := f.do(t, http.MethodGet, "/papers", nil, http.Header{"Origin": {"http://evil.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/papers/zzz", nil, nil).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `research_assistant_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `research_assistant_http_requests_total{method="GET",route="/papers/{id}",status="404"} 1`)
	assert.Contains(t, body, "research_assistant_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "research_assistant_papers_total 0")
}

func TestRecoverPanics(t *testing.T) {
	f := newFixture(t, nil)
	h := f.srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["detail"])
}

func TestRunShutsDown(t *testing.T) {
	f := newFixture(t, func(c *types.Config) {
		c.API.Host = "127.0.0.1"
		c.API.Port = 0
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

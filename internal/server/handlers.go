// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/assistant"
	"github.com/pdiddy/research-assistant/internal/convert"
	"github.com/pdiddy/research-assistant/internal/export"
	"github.com/pdiddy/research-assistant/internal/fetch"
	"github.com/pdiddy/research-assistant/internal/parser"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// maxMemory is how much of a multipart upload is kept in memory before
// spilling to disk.
const maxMemory = 32 << 20

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrPaperNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrTooFewPapers),
		errors.Is(err, assistant.ErrInvalidAnalysisType),
		errors.Is(err, convert.ErrUnsupportedFormat),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, fetch.ErrUnknownIdentifier),
		errors.Is(err, fetch.ErrNotPDF):
		return http.StatusBadRequest
	case errors.Is(err, parser.ErrFileTooLarge), isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, assistant.ErrFetchDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case isTooLarge(err):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	default:
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return false
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": ServiceName,
		"message": "Research Assistant API",
		"version": s.version,
		"endpoints": map[string]string{
			"upload":    "POST /papers/upload",
			"fetch":     "POST /papers/fetch",
			"ask":       "POST /papers/ask",
			"summarize": "POST /papers/summarize",
			"analyze":   "POST /papers/analyze",
			"compare":   "POST /papers/compare",
			"search":    "POST /papers/search",
			"list":      "GET /papers",
			"info":      "GET /papers/{id}",
			"history":   "GET /papers/{id}/history",
			"export":    "GET /papers/{id}/export",
			"delete":    "DELETE /papers/{id}",
			"health":    "GET /health",
			"metrics":   "GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": ServiceName,
		"papers":  s.a.Count(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !s.a.Supported(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type %q; supported: %s",
			filepath.Ext(name), strings.Join(s.cfg.Processing.SupportedFormats, ", ")))
		return
	}
	if s.cfg.Processing.MaxFileSize > 0 && header.Size > s.cfg.Processing.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	tmpDir := s.cfg.Processing.TempDir
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0o755); err != nil {
			s.fail(w, r, fmt.Errorf("creating temp directory: %w", err))
			return
		}
	}
	tmp, err := os.CreateTemp(tmpDir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		s.fail(w, r, fmt.Errorf("creating temp file: %w", err))
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	_, copyErr := io.Copy(tmp, file)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		s.fail(w, r, fmt.Errorf("saving upload: %w", errors.Join(copyErr, closeErr)))
		return
	}

	id, err := s.a.UploadAs(r.Context(), tmpPath, name, r.FormValue("paper_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Paper uploaded and processed successfully",
		"paper_id": id,
		"filename": name,
	})
}

type fetchRequest struct {
	Identifier string `json:"identifier"`
	PaperID    string `json:"paper_id"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	id, err := s.a.Fetch(r.Context(), req.Identifier, req.PaperID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Paper fetched and processed successfully",
		"paper_id": id,
	})
}

type askRequest struct {
	Question string `json:"question"`
	PaperID  string `json:"paper_id"`
	Section  string `json:"section"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	ans, err := s.a.Ask(r.Context(), req.Question, req.PaperID, req.Section)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type summarizeRequest struct {
	PaperID string `json:"paper_id"`
	Section string `json:"section"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaperID == "" {
		writeError(w, http.StatusBadRequest, "paper_id is required")
		return
	}
	summary, err := s.a.Summarize(r.Context(), req.PaperID, req.Section)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"paper_id": req.PaperID,
		"section":  req.Section,
		"summary":  summary,
	})
}

type analyzeRequest struct {
	PaperID      string `json:"paper_id"`
	AnalysisType string `json:"analysis_type"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req := analyzeRequest{AnalysisType: string(types.AnalysisContribution)}
	if !decode(w, r, &req) {
		return
	}
	if req.PaperID == "" {
		writeError(w, http.StatusBadRequest, "paper_id is required")
		return
	}
	analysis, err := s.a.Analyze(r.Context(), req.PaperID, types.AnalysisType(req.AnalysisType))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"analysis_type": analysis.Type,
		"paper_id":      req.PaperID,
		"analysis":      analysis,
	})
}

type compareRequest struct {
	PaperIDs []string `json:"paper_ids"`
	Aspect   string   `json:"aspect"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decode(w, r, &req) {
		return
	}
	cmp, err := s.a.Compare(r.Context(), req.PaperIDs, req.Aspect)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	// Sections switches to a full-text search over section content.
	Sections bool `json:"sections"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if limit := s.cfg.Database.MaxResults; limit > 0 && req.Limit > limit {
		req.Limit = limit
	}

	var (
		results any
		count   int
		err     error
	)
	if req.Sections {
		var hits []types.SectionHit
		hits, err = s.a.SearchSections(r.Context(), req.Query, req.Limit)
		results, count = hits, len(hits)
	} else {
		var hits []types.SearchHit
		hits, err = s.a.Search(r.Context(), req.Query, req.Limit)
		results, count = hits, len(hits)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
		"count":   count,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	papers, err := s.a.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if papers == nil {
		papers = []types.PaperListing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(papers),
		"papers": papers,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.a.Info(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.a.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Paper %s deleted successfully", id),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	history, err := s.a.History(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if history == nil {
		history = []types.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paper_id": id,
		"history":  history,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Buffer so a failed export still gets a JSON error response.
	var buf bytes.Buffer
	if err := s.a.Export(r.Context(), id, format, &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+format.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads papers by arXiv id, DOI or URL so they can be
// uploaded like local files.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

var (
	// ErrUnknownIdentifier is returned for input Classify cannot place.
	ErrUnknownIdentifier = errors.New("unrecognized identifier")
	// ErrNotPDF is returned when the download is not a PDF, typically a
	// publisher landing page behind a DOI.
	ErrNotPDF = errors.New("downloaded file is not a PDF")
)

// Result describes a fetched paper.
type Result struct {
	Slug    string
	Path    string
	Source  string
	URL     string
	Skipped bool
}

// Fetcher downloads papers into Dir.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	// Email is sent to OpenAlex as mailto for polite pool access.
	Email string
	Dir   string

	logger *zap.Logger
}

// New returns a Fetcher writing into dir.
func New(client *http.Client, dir, userAgent, email string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, UserAgent: userAgent, Email: email, Dir: dir, logger: logger}
}

// Fetch resolves identifier and downloads its PDF to Dir/<slug>.pdf. An
// existing file is reused without downloading.
func (f *Fetcher) Fetch(ctx context.Context, identifier string) (Result, error) {
	idType, normalized := Classify(identifier)
	if idType == TypeUnknown {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownIdentifier, identifier)
	}

	slug := Slug(idType, normalized)
	res := Result{
		Slug:   slug,
		Path:   filepath.Join(f.Dir, slug+".pdf"),
		Source: idType.String(),
		URL:    PDFURL(idType, normalized),
	}

	if _, err := os.Stat(res.Path); err == nil {
		f.logger.Info("paper already downloaded", zap.String("slug", slug))
		res.Skipped = true
		return res, nil
	}

	// For DOIs, try OpenAlex first for an open-access PDF.
	if idType == TypeDOI {
		oaURL, err := f.resolveOpenAlex(ctx, normalized)
		if err != nil {
			f.logger.Warn("OpenAlex lookup failed, using doi.org", zap.String("doi", normalized), zap.Error(err))
		} else if oaURL != "" {
			res.URL = oaURL
			res.Source = "openalex"
		}
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating directory %s: %w", f.Dir, err)
	}

	f.logger.Info("downloading paper",
		zap.String("slug", slug),
		zap.String("source", res.Source),
		zap.String("url", res.URL))
	if err := f.download(ctx, res.URL, res.Path); err != nil {
		return Result{}, fmt.Errorf("downloading %s: %w", slug, err)
	}
	return res, nil
}

// download fetches rawURL to destPath through a temporary file that is
// renamed on success.
func (f *Fetcher) download(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body := bufio.NewReader(resp.Body)
	magic, _ := body.Peek(5)
	if !bytes.Equal(magic, []byte("%PDF-")) {
		return ErrNotPDF
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// openAlexWork captures the fields needed from an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *struct {
		PDFURL string `json:"pdf_url"`
	} `json:"best_oa_location"`
}

// resolveOpenAlex returns the open-access PDF URL for a DOI, or "" when
// OpenAlex knows of none.
func (f *Fetcher) resolveOpenAlex(ctx context.Context, doi string) (string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + doi
	if f.Email != "" {
		apiURL += "?mailto=" + url.QueryEscape(f.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating OpenAlex request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if work.BestOALocation == nil {
		return "", nil
	}
	return work.BestOALocation.PDFURL, nil
}

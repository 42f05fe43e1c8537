// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/embed"
	"github.com/pdiddy/research-assistant/internal/export"
	"github.com/pdiddy/research-assistant/internal/telemetry"
	"github.com/pdiddy/research-assistant/internal/vector"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	paperDataFile  = "paper_data.json"
	embeddingsFile = "embeddings.json"
)

// Upload parses, embeds and stores the paper at path under id, generating
// a UUID when id is empty. Uploading an existing id replaces the paper.
func (a *Assistant) Upload(ctx context.Context, path, id string) (string, error) {
	return a.UploadAs(ctx, path, "", id)
}

// UploadAs is Upload for a file staged under a temporary path. The paper's
// source path becomes the archive location, or name when nothing was
// archived.
func (a *Assistant) UploadAs(ctx context.Context, path, name, id string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "assistant.upload", trace.WithAttributes(attribute.String("path", path)))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.Uploads.WithLabelValues(status).Inc()
		telemetry.End(span, err)
	}()

	if id == "" {
		id = a.newID()
	}
	span.SetAttributes(attribute.String("paper.id", id))
	a.logger.Info("processing paper", zap.String("path", path), zap.String("paper_id", id))

	paper, err := a.parser.Parse(ctx, path)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	paper.ID = id
	if name != "" {
		paper.SourcePath = name
	}

	if a.enricher != nil && a.enricher.Enrich(ctx, paper) {
		a.logger.Info("enriched metadata", zap.String("paper_id", id), zap.String("title", paper.Metadata.Title))
	}

	emb, err := embed.EncodePaper(ctx, a.embedder, paper, a.batchSize)
	if err != nil {
		return "", fmt.Errorf("embedding %s: %w", id, err)
	}

	if a.archive != nil {
		loc, err := a.archive.Put(ctx, id, path)
		if err != nil {
			a.logger.Warn("archiving source failed", zap.String("paper_id", id), zap.String("backend", a.archive.Name()), zap.Error(err))
		} else {
			a.logger.Debug("archived source", zap.String("paper_id", id), zap.String("location", loc))
			paper.SourcePath = loc
		}
	}

	if err := a.store.SavePaper(ctx, paper); err != nil {
		return "", err
	}
	if old, err := a.paper(id); err == nil {
		if err := a.index.Delete(ctx, recordIDs(old)...); err != nil {
			return "", fmt.Errorf("removing old vectors for %s: %w", id, err)
		}
	}
	if err := a.indexPaper(ctx, paper, emb); err != nil {
		return "", err
	}
	if err := a.saveProcessed(paper, emb); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.papers[id] = paper
	n := len(a.papers)
	a.mu.Unlock()
	a.metrics.Papers.Set(float64(n))

	a.logger.Info("processed paper",
		zap.String("paper_id", id),
		zap.String("title", paper.Metadata.Title),
		zap.Int("sections", len(paper.Sections)))
	return id, nil
}

// indexPaper writes a paper's title, abstract and section vectors.
func (a *Assistant) indexPaper(ctx context.Context, p *types.ParsedPaper, emb *types.PaperEmbeddings) error {
	recs := []vector.Record{
		{ID: vector.RecordID(p.ID, vector.KindTitle), PaperID: p.ID, Kind: vector.KindTitle, Label: p.Metadata.Title, Vector: emb.Title},
		{ID: vector.RecordID(p.ID, vector.KindAbstract), PaperID: p.ID, Kind: vector.KindAbstract, Label: p.Metadata.Title, Vector: emb.Abstract},
	}
	for i, vec := range emb.Sections {
		label := ""
		if i < len(p.Sections) {
			label = p.Sections[i].Title
		}
		recs = append(recs, vector.Record{
			ID:      vector.SectionRecordID(p.ID, i),
			PaperID: p.ID,
			Kind:    vector.KindSection,
			Label:   label,
			Vector:  vec,
		})
	}
	if err := a.index.Upsert(ctx, recs...); err != nil {
		return fmt.Errorf("indexing %s: %w", p.ID, err)
	}
	return nil
}

// recordIDs lists every vector id a paper may own.
func recordIDs(p *types.ParsedPaper) []string {
	ids := []string{
		vector.RecordID(p.ID, vector.KindTitle),
		vector.RecordID(p.ID, vector.KindAbstract),
	}
	for i := range p.Sections {
		ids = append(ids, vector.SectionRecordID(p.ID, i))
	}
	return ids
}

// saveProcessed writes processed/<id>/paper_data.json and embeddings.json.
func (a *Assistant) saveProcessed(p *types.ParsedPaper, emb *types.PaperEmbeddings) error {
	if a.processedDir == "" {
		return nil
	}
	dir := filepath.Join(a.processedDir, p.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, paperDataFile), func(w io.Writer) error {
		return export.Write(w, export.FormatJSON, p)
	}); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, embeddingsFile), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(emb)
	})
}

func (a *Assistant) loadEmbeddings(id string) (*types.PaperEmbeddings, error) {
	data, err := os.ReadFile(filepath.Join(a.processedDir, id, embeddingsFile))
	if err != nil {
		return nil, err
	}
	var emb types.PaperEmbeddings
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, fmt.Errorf("parsing embeddings for %s: %w", id, err)
	}
	return &emb, nil
}

// writeFileAtomic writes through a temp file renamed into place on success.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := write(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

var unsafeIDChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// IDFromPath derives a paper id from a file name: the lowercased base name
// without extension, with runs of characters other than letters, digits,
// '.', '_' and '-' collapsed to "-". Names that leave nothing get "paper-"
// plus a short hash of the base name so distinct files keep distinct ids.
func IDFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := strings.Trim(unsafeIDChars.ReplaceAllString(strings.ToLower(base), "-"), "-.")
	if id == "" {
		sum := sha256.Sum256([]byte(base))
		return "paper-" + hex.EncodeToString(sum[:4])
	}
	return id
}

// BatchResult holds the outcome of a directory upload.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
	// IDs maps each processed file name to its paper id.
	IDs map[string]string
}

// Total returns the number of files considered.
func (r BatchResult) Total() int {
	return r.Processed + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Batch uploads every supported file in dir with up to workers concurrent
// uploads. Ids come from file names; files whose id is already in the
// library are skipped unless force is set. Per-file status lines go to w.
func (a *Assistant) Batch(ctx context.Context, dir string, workers int, force bool, w io.Writer) (BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && a.parser.Supported(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if workers <= 0 {
		workers = 1
	}
	result := BatchResult{IDs: make(map[string]string)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range files {
		g.Go(func() error {
			id := IDFromPath(name)
			if !force && a.Has(id) {
				mu.Lock()
				result.Skipped++
				fmt.Fprintf(w, "skipped: %s (already uploaded as %s)\n", name, id)
				mu.Unlock()
				return nil
			}
			_, err := a.Upload(gctx, filepath.Join(dir, name), id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				fmt.Fprintf(w, "failed: %s: %v\n", name, err)
				return nil
			}
			result.Processed++
			result.IDs[name] = id
			fmt.Fprintf(w, "processed: %s -> %s\n", name, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, ctx.Err()
}

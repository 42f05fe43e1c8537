// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps the original files papers were parsed from, either
// in a local directory or in an S3 bucket.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Archive stores and removes source files keyed by paper id.
type Archive interface {
	// Put stores the file at srcPath and returns where it was stored.
	Put(ctx context.Context, paperID, srcPath string) (string, error)
	// Delete removes everything stored for paperID. Missing entries are
	// not an error.
	Delete(ctx context.Context, paperID string) error
	Name() string
}

// FromConfig returns the configured archive, or nil when archiving is off.
// The local archive keeps files in uploadDir.
func FromConfig(ctx context.Context, cfg types.ArchiveConfig, uploadDir string) (Archive, error) {
	switch cfg.Backend {
	case types.ArchiveNone, "":
		return nil, nil
	case types.ArchiveLocal:
		return &LocalArchive{Dir: uploadDir}, nil
	case types.ArchiveS3:
		return NewS3Archive(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// LocalArchive copies source files to Dir/<paper id><ext>.
type LocalArchive struct {
	Dir string
}

// Name returns the backend identifier.
func (a *LocalArchive) Name() string { return "local" }

// Put copies srcPath into the archive directory. A file already at the
// destination is left as is.
func (a *LocalArchive) Put(_ context.Context, paperID, srcPath string) (string, error) {
	dest := filepath.Join(a.Dir, paperID+strings.ToLower(filepath.Ext(srcPath)))
	if same, _ := samePath(srcPath, dest); same {
		return dest, nil
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(a.Dir, ".archive-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("copying %s: %w", srcPath, firstErr(copyErr, closeErr))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}

// Delete removes Dir/<paper id>.* files.
func (a *LocalArchive) Delete(_ context.Context, paperID string) error {
	matches, err := filepath.Glob(filepath.Join(a.Dir, globEscape(paperID)+".*"))
	if err != nil {
		return fmt.Errorf("listing archive: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", m, err)
		}
	}
	return nil
}

func samePath(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}

func globEscape(s string) string {
	return strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`).Replace(s)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

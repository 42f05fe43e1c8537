// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads PDF text in-process with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

// Extract returns the plain text of every page. Null pages and pages whose
// content stream cannot be decoded become empty strings.
func (PDFExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("reading PDF %s: %w", path, err)
	}

	n := reader.NumPage()
	doc := &Document{Pages: make([]string, n)}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		doc.Pages[i-1] = text
	}

	if trailer := reader.Trailer(); !trailer.IsNull() {
		meta := trailer.Key("Info")
		doc.Info.Title = meta.Key("Title").Text()
		doc.Info.CreationDate = meta.Key("CreationDate").Text()
	}

	return doc, nil
}

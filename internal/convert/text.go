// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
)

// TextExtractor reads .txt and .tex files. Form feeds separate pages.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &Document{Pages: splitPages(string(data))}, nil
}

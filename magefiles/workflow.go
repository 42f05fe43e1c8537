//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

func bin() string {
	return filepath.Join(binDir, binName)
}

// Serve builds the binary and runs the REST API.
func Serve() error {
	mg.Deps(Build, Init)
	return sh.RunV(bin(), "serve")
}

// Ingest uploads every supported file in $INBOX (default ./papers).
func Ingest() error {
	mg.Deps(Build, Init)
	dir := os.Getenv("INBOX")
	if dir == "" {
		dir = "papers"
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("inbox %s: %w", dir, err)
	}
	return sh.RunV(bin(), "batch", dir)
}

// Fetch downloads and uploads the paper named by $PAPER (arXiv ID, DOI or URL).
func Fetch() error {
	mg.Deps(Build, Init)
	id := os.Getenv("PAPER")
	if id == "" {
		return fmt.Errorf("set PAPER to an arXiv ID, DOI or URL")
	}
	return sh.RunV(bin(), "fetch", id)
}

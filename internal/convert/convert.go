// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns PDFs into Markdown by delegating to Marker and
// summarizes the heading structure of the result.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrEmptyOutput is returned when a backend finishes without producing Markdown.
var ErrEmptyOutput = errors.New("marker produced empty output")

// Document is what a backend hands back for one PDF.
type Document struct {
	Markdown string

	// Pages is the page count reported by the backend, or 0 when the
	// backend cannot tell.
	Pages int
}

// Converter transforms a PDF file into Markdown. The container, command,
// and server backends implement this interface.
type Converter interface {
	// Name identifies the backend in logs and history records.
	Name() string

	// Load prepares the backend (image present, binary on PATH, server
	// reachable). It may be slow; callers go through a Loader.
	Load(ctx context.Context) error

	// Convert reads the PDF at pdfPath and returns the Markdown content.
	Convert(ctx context.Context, pdfPath string) (Document, error)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

type fileStatus int

const (
	statusConverted fileStatus = iota
	statusSkipped
	statusFailed
)

// convertFile converts a single PDF to Markdown with YAML frontmatter,
// writing <outDir>/<stem>.md. Existing output is left alone unless force
// is set.
func convertFile(ctx context.Context, c Converter, pdfPath, outDir string, force bool, w io.Writer) fileStatus {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	mdPath := filepath.Join(outDir, base+".md")

	if !force {
		if _, err := os.Stat(mdPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", base)
			return statusSkipped
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return statusFailed
	}

	start := time.Now()
	doc, err := c.Convert(ctx, pdfPath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return statusFailed
	}

	pages := doc.Pages
	if pages == 0 {
		if n, err := CountPages(pdfPath); err == nil {
			pages = n
		}
	}

	content, err := addFrontmatter(pdfPath, c.Name(), pages, doc.Markdown)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return statusFailed
	}

	if err := os.WriteFile(mdPath, []byte(content), 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return statusFailed
	}

	stats := Summarize(doc.Markdown)
	fmt.Fprintf(w, "converted: %s (%d pages, h1=%d h2=%d h3=%d, %s)\n",
		base, pages, stats.H1Count, stats.H2Count, stats.H3Count,
		time.Since(start).Round(time.Millisecond))
	return statusConverted
}

// ConvertBatch processes a list of PDFs through the converter, printing
// per-file status to w and returning a summary. It stops early when ctx is
// cancelled, counting the remaining files as failed.
func ConvertBatch(ctx context.Context, c Converter, pdfPaths []string, outDir string, force bool, w io.Writer) BatchResult {
	var result BatchResult
	for i, p := range pdfPaths {
		if err := ctx.Err(); err != nil {
			result.Failed += len(pdfPaths) - i
			fmt.Fprintf(w, "aborted: %v\n", err)
			break
		}
		switch convertFile(ctx, c, p, outDir, force, w) {
		case statusConverted:
			result.Converted++
		case statusSkipped:
			result.Skipped++
		case statusFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

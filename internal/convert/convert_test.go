// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

// fakeConverter implements Converter for testing. It returns canned Markdown
// or an error, depending on configuration.
type fakeConverter struct {
	output  string
	pages   int
	err     error
	loadErr error
}

func (f *fakeConverter) Name() string { return "fake" }

func (f *fakeConverter) Load(context.Context) error { return f.loadErr }

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (Document, error) {
	if f.err != nil {
		return Document{}, f.err
	}
	return Document{Markdown: f.output, Pages: f.pages}, nil
}

// selectiveConverter returns different results per file path.
type selectiveConverter struct {
	outputs map[string]string
	errors  map[string]error
}

func (s *selectiveConverter) Name() string               { return "selective" }
func (s *selectiveConverter) Load(context.Context) error { return nil }

func (s *selectiveConverter) Convert(_ context.Context, pdfPath string) (Document, error) {
	if err, ok := s.errors[pdfPath]; ok {
		return Document{}, err
	}
	if out, ok := s.outputs[pdfPath]; ok {
		return Document{Markdown: out, Pages: 1}, nil
	}
	return Document{}, errors.New("unexpected path: " + pdfPath)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertFile(t *testing.T) {
	tests := []struct {
		name       string
		converter  *fakeConverter
		preCreate  bool
		force      bool
		wantStatus fileStatus
		wantLog    string
	}{
		{
			name:       "successful conversion",
			converter:  &fakeConverter{output: "# Title\n\nContent here.", pages: 2},
			wantStatus: statusConverted,
			wantLog:    "converted:",
		},
		{
			name:       "skip existing markdown",
			converter:  &fakeConverter{output: "should not be called"},
			preCreate:  true,
			wantStatus: statusSkipped,
			wantLog:    "skipped:",
		},
		{
			name:       "force overwrites existing markdown",
			converter:  &fakeConverter{output: "# New", pages: 1},
			preCreate:  true,
			force:      true,
			wantStatus: statusConverted,
			wantLog:    "converted:",
		},
		{
			name:       "conversion failure",
			converter:  &fakeConverter{err: errors.New("container crashed")},
			wantStatus: statusFailed,
			wantLog:    "failed:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfPath := writeTempFile(t, "2301.07041.pdf", "fake pdf")
			outDir := filepath.Join(t.TempDir(), "markdown")

			if tt.preCreate {
				require.NoError(t, os.MkdirAll(outDir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(outDir, "2301.07041.md"), []byte("existing"), 0o644))
			}

			var log bytes.Buffer
			status := convertFile(context.Background(), tt.converter, pdfPath, outDir, tt.force, &log)

			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, log.String(), tt.wantLog)
		})
	}
}

func TestConvertFile_Frontmatter(t *testing.T) {
	pdfPath := writeTempFile(t, "report.pdf", "fake pdf")
	outDir := t.TempDir()
	conv := &fakeConverter{output: "# Annual Report\n\n## Summary\n\nSome content.", pages: 7}

	var log bytes.Buffer
	require.Equal(t, statusConverted, convertFile(context.Background(), conv, pdfPath, outDir, false, &log))

	data, err := os.ReadFile(filepath.Join(outDir, "report.md"))
	require.NoError(t, err)
	content := string(data)

	require.True(t, strings.HasPrefix(content, "---\n"), "output should start with YAML frontmatter delimiter")
	parts := strings.SplitN(content, "---\n", 3)
	require.Len(t, parts, 3)

	var fm frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Annual Report", fm.Title)
	assert.Equal(t, pdfPath, fm.SourcePDF)
	assert.Equal(t, "marker", fm.Engine)
	assert.Equal(t, "fake", fm.Backend)
	assert.Equal(t, 7, fm.Pages)
	assert.Equal(t, 1, fm.StructureStats.H1Count)
	assert.Equal(t, 1, fm.StructureStats.H2Count)
	assert.NotEmpty(t, fm.ConvertedAt)

	assert.True(t, strings.HasSuffix(content, conv.output), "output should end with the converted Markdown body")
}

func TestConvertBatch(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, name), []byte("pdf"), 0o644))
	}
	// Pre-create output for "b" to trigger skip.
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "b.md"), []byte("existing"), 0o644))

	conv := &selectiveConverter{
		outputs: map[string]string{
			filepath.Join(rawDir, "a.pdf"): "# Paper A",
			filepath.Join(rawDir, "b.pdf"): "# Paper B",
		},
		errors: map[string]error{
			filepath.Join(rawDir, "c.pdf"): errors.New("bad pdf"),
		},
	}
	paths := []string{
		filepath.Join(rawDir, "a.pdf"),
		filepath.Join(rawDir, "b.pdf"),
		filepath.Join(rawDir, "c.pdf"),
	}

	var log bytes.Buffer
	result := ConvertBatch(context.Background(), conv, paths, outDir, false, &log)

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Equal(t, 3, result.Total())
	assert.Contains(t, log.String(), "Batch summary:")
}

func TestConvertBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths := []string{writeTempFile(t, "a.pdf", "x"), writeTempFile(t, "b.pdf", "x")}
	var log bytes.Buffer
	result := ConvertBatch(ctx, &fakeConverter{output: "# A"}, paths, t.TempDir(), false, &log)

	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Converted)
	assert.Contains(t, log.String(), "aborted:")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdiddy/marker-api/internal/container"
	"github.com/pdiddy/marker-api/pkg/types"
)

const (
	// DefaultImage is the Marker container image used when none is configured.
	DefaultImage = "marker:latest"
	// DefaultCommand is the Marker CLI that converts a single file.
	DefaultCommand = "marker_single"

	containerInDir  = "/in"
	containerOutDir = "/out"
	// containerCacheDir is where Marker keeps downloaded model weights.
	containerCacheDir = "/root/.cache/datalab"
)

// markerArgs returns the marker_single arguments for converting pdfPath
// into outDir as Markdown.
func markerArgs(pdfPath, outDir string) []string {
	return []string{pdfPath, "--output_dir", outDir, "--output_format", "markdown"}
}

// runner executes marker_single somewhere: in a container or as a local
// process. It writes Marker's usual output tree under outDir.
type runner interface {
	name() string
	check(ctx context.Context) error
	run(ctx context.Context, pdfPath, outDir string) error
}

// MarkerConverter runs marker_single once per PDF and reads the Markdown
// and page statistics it leaves on disk.
type MarkerConverter struct {
	runner  runner
	tempDir string
}

// NewContainerConverter creates a converter that runs the Marker image
// through the given container runtime. Only the per-call input directory
// holding the staged PDF is mounted, read-only, next to a scratch output
// directory.
func NewContainerConverter(rt container.Runtime, cfg types.ConverterConfig, tempDir string) *MarkerConverter {
	image := cfg.Image
	if image == "" {
		image = DefaultImage
	}
	return &MarkerConverter{
		runner: &containerRunner{
			rt:       rt,
			image:    image,
			cacheDir: cfg.ModelCacheDir,
		},
		tempDir: tempDir,
	}
}

// NewCommandConverter creates a converter that runs a local marker_single
// binary.
func NewCommandConverter(cfg types.ConverterConfig, tempDir string) *MarkerConverter {
	bin := cfg.Command
	if bin == "" {
		bin = DefaultCommand
	}
	return &MarkerConverter{
		runner:  &commandRunner{bin: bin, exec: osCommandExecutor{}},
		tempDir: tempDir,
	}
}

// Name returns the backend description, e.g. "container:docker".
func (m *MarkerConverter) Name() string { return m.runner.name() }

// Load verifies the runner can start Marker.
func (m *MarkerConverter) Load(ctx context.Context) error {
	return m.runner.check(ctx)
}

// Convert runs Marker on the PDF at pdfPath and returns the resulting
// Markdown. The PDF is staged alone in a per-call work directory so the
// runner sees no other files; the work directory is removed before
// returning.
func (m *MarkerConverter) Convert(ctx context.Context, pdfPath string) (Document, error) {
	workDir, err := os.MkdirTemp(m.tempDir, "marker-*")
	if err != nil {
		return Document{}, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	inDir := filepath.Join(workDir, "in")
	outDir := filepath.Join(workDir, "out")
	for _, dir := range []string{inDir, outDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			return Document{}, fmt.Errorf("creating work directory: %w", err)
		}
	}

	staged := filepath.Join(inDir, filepath.Base(pdfPath))
	if err := linkOrCopy(pdfPath, staged); err != nil {
		return Document{}, fmt.Errorf("staging %s: %w", filepath.Base(pdfPath), err)
	}

	if err := m.runner.run(ctx, staged, outDir); err != nil {
		return Document{}, fmt.Errorf("converting %s with marker: %w", filepath.Base(pdfPath), err)
	}

	doc, err := readMarkerOutput(outDir, stem(pdfPath))
	if err != nil {
		return Document{}, fmt.Errorf("reading marker output for %s: %w", filepath.Base(pdfPath), err)
	}
	return doc, nil
}

// linkOrCopy hard-links src to dst, copying when the two are on different
// filesystems.
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// markerMeta is the subset of <stem>_meta.json this package reads.
type markerMeta struct {
	PageStats []json.RawMessage `json:"page_stats"`
}

// readMarkerOutput loads <outDir>/<stem>/<stem>.md and the page count from
// the sibling meta file. Older Marker releases wrote directly into outDir,
// so any single .md file in the tree is accepted as a fallback.
func readMarkerOutput(outDir, name string) (Document, error) {
	mdPath := filepath.Join(outDir, name, name+".md")
	if _, err := os.Stat(mdPath); err != nil {
		found, ferr := findMarkdown(outDir)
		if ferr != nil {
			return Document{}, ferr
		}
		mdPath = found
	}

	data, err := os.ReadFile(mdPath)
	if err != nil {
		return Document{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, ErrEmptyOutput
	}

	doc := Document{Markdown: string(data)}

	metaPath := strings.TrimSuffix(mdPath, ".md") + "_meta.json"
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta markerMeta
		if json.Unmarshal(raw, &meta) == nil {
			doc.Pages = len(meta.PageStats)
		}
	}
	return doc, nil
}

var errFound = errors.New("found")

func findMarkdown(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".md" {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	if found == "" {
		return "", ErrEmptyOutput
	}
	return found, nil
}

// containerRunner runs marker_single inside the Marker image. The PDF's
// directory is mounted read-only, so callers hand it a directory holding
// only that PDF.
type containerRunner struct {
	rt       container.Runtime
	image    string
	cacheDir string
}

func (c *containerRunner) name() string { return "container:" + c.rt.Name() }

func (c *containerRunner) check(ctx context.Context) error {
	if err := c.rt.ImageExists(ctx, c.image); err != nil {
		return fmt.Errorf("marker image not available in %s: %w", c.rt.Name(), err)
	}
	return nil
}

func (c *containerRunner) run(ctx context.Context, pdfPath, outDir string) error {
	absPDF, err := filepath.Abs(pdfPath)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return err
	}

	mounts := []container.Mount{
		{Source: filepath.Dir(absPDF), Target: containerInDir, ReadOnly: true},
		{Source: absOut, Target: containerOutDir},
	}
	if c.cacheDir != "" {
		if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
			return fmt.Errorf("creating model cache dir: %w", err)
		}
		absCache, err := filepath.Abs(c.cacheDir)
		if err != nil {
			return err
		}
		mounts = append(mounts, container.Mount{Source: absCache, Target: containerCacheDir})
	}

	args := append([]string{DefaultCommand},
		markerArgs(containerInDir+"/"+filepath.Base(absPDF), containerOutDir)...)

	return c.rt.Run(ctx, container.RunSpec{
		Image:  c.image,
		Args:   args,
		Mounts: mounts,
	})
}

// commandExecutor abstracts local process execution for testing.
type commandExecutor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stderr io.Writer) error
}

type osCommandExecutor struct{}

func (osCommandExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osCommandExecutor) Run(ctx context.Context, name string, args []string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = stderr
	return cmd.Run()
}

// commandRunner runs a marker_single binary on the host.
type commandRunner struct {
	bin  string
	exec commandExecutor
}

func (c *commandRunner) name() string { return "command:" + filepath.Base(c.bin) }

func (c *commandRunner) check(context.Context) error {
	if _, err := c.exec.LookPath(c.bin); err != nil {
		return fmt.Errorf("marker command %s not found: %w", c.bin, err)
	}
	return nil
}

func (c *commandRunner) run(ctx context.Context, pdfPath, outDir string) error {
	var stderr bytes.Buffer
	if err := c.exec.Run(ctx, c.bin, markerArgs(pdfPath, outDir), &stderr); err != nil {
		if tail := strings.TrimSpace(lastLine(stderr.String())); tail != "" {
			return fmt.Errorf("running %s: %w: %s", c.bin, err, tail)
		}
		return fmt.Errorf("running %s: %w", c.bin, err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

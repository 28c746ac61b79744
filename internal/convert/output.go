// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/marker-api/pkg/types"
)

// frontmatter is the YAML header written above converted Markdown files.
type frontmatter struct {
	Title          string               `yaml:"title,omitempty"`
	SourcePDF      string               `yaml:"source_pdf"`
	Engine         string               `yaml:"engine"`
	Backend        string               `yaml:"backend"`
	Pages          int                  `yaml:"pages,omitempty"`
	StructureStats types.StructureStats `yaml:"structure_stats"`
	ConvertedAt    string               `yaml:"converted_at"`
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown content.
func addFrontmatter(pdfPath, backend string, pages int, body string) (string, error) {
	fm := frontmatter{
		Title:          Title(body),
		SourcePDF:      pdfPath,
		Engine:         types.SourceMarker,
		Backend:        backend,
		Pages:          pages,
		StructureStats: Summarize(body),
		ConvertedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}

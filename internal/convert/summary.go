// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"strings"

	"github.com/pdiddy/marker-api/pkg/types"
)

// Summarize counts lines that begin with "# ", "## ", or "### ". The scan is
// literal: headings inside fenced code blocks count too, "#Title" without
// a space does not, and "#### " and deeper match no bucket.
func Summarize(markdown string) types.StructureStats {
	var stats types.StructureStats
	for line := range strings.Lines(markdown) {
		switch {
		case strings.HasPrefix(line, "# "):
			stats.H1Count++
		case strings.HasPrefix(line, "## "):
			stats.H2Count++
		case strings.HasPrefix(line, "### "):
			stats.H3Count++
		}
	}
	return stats
}

// HasStructure reports whether any heading was counted.
func HasStructure(stats types.StructureStats) bool {
	return stats.Total() > 0
}

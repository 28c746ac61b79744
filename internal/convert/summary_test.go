// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/marker-api/pkg/types"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want types.StructureStats
	}{
		{
			name: "empty",
			in:   "",
			want: types.StructureStats{},
		},
		{
			name: "first line heading counts",
			in:   "# Title\nbody",
			want: types.StructureStats{H1Count: 1},
		},
		{
			name: "all three levels",
			in:   "# A\n\n## B\n\n### C\n\n## D\n",
			want: types.StructureStats{H1Count: 1, H2Count: 2, H3Count: 1},
		},
		{
			name: "deeper levels ignored",
			in:   "#### Four\n##### Five\n###### Six\n",
			want: types.StructureStats{},
		},
		{
			name: "marker must start the line and be followed by a space",
			in:   "#NoSpace\n  # indented\ntext # not a heading\n##\n",
			want: types.StructureStats{},
		},
		{
			name: "literal scan counts headings in code fences",
			in:   "```\n# comment\n```\n",
			want: types.StructureStats{H1Count: 1},
		},
		{
			name: "crlf line endings",
			in:   "# A\r\n## B\r\n",
			want: types.StructureStats{H1Count: 1, H2Count: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Total() > 0, HasStructure(got))
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no headings", "just text", ""},
		{"first h1 wins", "## Intro\n\n# Report\n\n# Appendix\n", "Report"},
		{"falls back to highest level", "### Minor\n\n## Major\n", "Major"},
		{"code fence ignored", "```\n# not a title\n```\n\n## Real\n", "Real"},
		{"setext heading", "Overview\n========\n", "Overview"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.in))
		})
	}
}

func TestCountPages_Errors(t *testing.T) {
	_, err := CountPages(t.TempDir() + "/missing.pdf")
	assert.Error(t, err)

	path := writeTempFile(t, "garbage.pdf", "this is not a pdf")
	_, err = CountPages(path)
	assert.Error(t, err)
}

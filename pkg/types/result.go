// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceMarker is the value of ConversionResult.Source for every conversion.
const SourceMarker = "marker"

// StructureStats counts the top three heading levels found in converted
// Markdown.
type StructureStats struct {
	H1Count int `json:"h1_count" yaml:"h1_count"`
	H2Count int `json:"h2_count" yaml:"h2_count"`
	H3Count int `json:"h3_count" yaml:"h3_count"`
}

// Total returns the number of headings across all three levels.
func (s StructureStats) Total() int {
	return s.H1Count + s.H2Count + s.H3Count
}

// ConversionResult is the JSON body returned by POST /convert on success.
type ConversionResult struct {
	Success bool `json:"success" yaml:"success"`

	// Markdown is the converter output, unmodified.
	Markdown string `json:"markdown" yaml:"markdown"`

	// Source identifies the conversion engine; always SourceMarker.
	Source string `json:"source" yaml:"source"`

	// HasStructure is true when at least one heading was found.
	HasStructure bool `json:"has_structure" yaml:"has_structure"`

	// PagesCount is nil when neither the converter nor the PDF itself
	// yielded a page count. It serializes as JSON null.
	PagesCount *int `json:"pages_count" yaml:"pages_count"`

	// ProcessingTimeMS is wall-clock time spent loading and converting.
	ProcessingTimeMS int64 `json:"processing_time_ms" yaml:"processing_time_ms"`

	StructureStats StructureStats `json:"structure_stats" yaml:"structure_stats"`
}

// ErrorResponse is the JSON body returned on client and conversion errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Usage   string `json:"usage,omitempty"`
}

// ConversionRecord is one row of conversion history.
type ConversionRecord struct {
	ID               string         `json:"id" yaml:"id"`
	Filename         string         `json:"filename" yaml:"filename"`
	SHA256           string         `json:"sha256" yaml:"sha256"`
	Backend          string         `json:"backend" yaml:"backend"`
	Success          bool           `json:"success" yaml:"success"`
	Error            string         `json:"error,omitempty" yaml:"error,omitempty"`
	PagesCount       *int           `json:"pages_count" yaml:"pages_count"`
	ProcessingTimeMS int64          `json:"processing_time_ms" yaml:"processing_time_ms"`
	StructureStats   StructureStats `json:"structure_stats" yaml:"structure_stats"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
}

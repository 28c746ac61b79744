// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Title returns the text of the highest-level heading in markdown, taking
// the first one when several share that level. Unlike Summarize it parses
// the document, so headings inside code blocks are ignored. Returns "" when
// the document has no headings.
func Title(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var (
		best      string
		bestLevel = 7
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level < bestLevel {
			best = headingText(h, src)
			bestLevel = h.Level
		}
		if bestLevel == 1 {
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	return best
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimSpace(b.String())
}

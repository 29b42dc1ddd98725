// Package mdmask computes, for a Markdown file's raw bytes, a per-byte mask
// telling the marker scanner (internal/ruleid) which bytes sit inside a
// fenced/indented code block or an inline code span.
//
// The two kinds of code region are tracked separately because tracey treats
// them differently: a fenced code block never carries marker meaning either
// way, but an inline code span (`` `r[impl x]` ``) is masked out for Define
// recognition yet still scanned for References — quoting a marker in an
// inline code sample is still evidence of linkage worth indexing, while
// quoting it inside a fenced example should not accidentally declare a rule.
//
// The mask is dedent-aware: spec authors often indent whole sections (e.g.
// a requirements block nested under a list item), and a uniform indent
// should not be mistaken for an indented code block. We strip the minimum
// common indentation from every non-blank line before handing the text to
// goldmark, then map the resulting byte ranges back to the original offsets.
package mdmask

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// regionKind classifies the code region, if any, a byte falls within.
type regionKind byte

const (
	regionNone regionKind = iota
	regionBlock
	regionInline
)

// Mask is a per-byte classification of Markdown code regions.
type Mask []regionKind

// IsCode reports whether offset falls inside any code region (block or
// inline). Out-of-range offsets are treated as not-code.
func (m Mask) IsCode(offset int) bool {
	return m.kindAt(offset) != regionNone
}

// IsFencedOrIndentedBlock reports whether offset falls inside a fenced or
// indented code block specifically (never inline spans).
func (m Mask) IsFencedOrIndentedBlock(offset int) bool {
	return m.kindAt(offset) == regionBlock
}

// IsInlineCodeSpan reports whether offset falls inside a backtick inline
// code span specifically (never block-level code).
func (m Mask) IsInlineCodeSpan(offset int) bool {
	return m.kindAt(offset) == regionInline
}

func (m Mask) kindAt(offset int) regionKind {
	if offset < 0 || offset >= len(m) {
		return regionNone
	}
	return m[offset]
}

// Build computes the code mask for Markdown content.
func Build(content []byte) Mask {
	normalized, indexMap := dedentWithIndexMap(content)

	mask := make(Mask, len(content))
	md := goldmark.New()
	reader := text.NewReader(normalized)
	doc := md.Parser().Parse(reader)

	mark := func(seg text.Segment, kind regionKind) {
		for i := seg.Start; i < seg.Stop && i < len(indexMap); i++ {
			mask[indexMap[i]] = kind
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			if lineable, ok := n.(interface{ Lines() *text.Segments }); ok {
				lines := lineable.Lines()
				for i := 0; i < lines.Len(); i++ {
					mark(lines.At(i), regionBlock)
				}
			}
		case ast.KindCodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					mark(t.Segment, regionInline)
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return mask
}

// dedentWithIndexMap strips the minimum common leading whitespace from every
// non-blank line of content, returning the normalized bytes and a map from
// each normalized byte index to its original index.
func dedentWithIndexMap(content []byte) ([]byte, []int) {
	lines := splitInclusive(content, '\n')

	minIndent := -1
	for _, line := range lines {
		stripped := trimTrailingNewline(line)
		if isBlank(stripped) {
			continue
		}
		indent := 0
		for indent < len(stripped) && (stripped[indent] == ' ' || stripped[indent] == '\t') {
			indent++
		}
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent < 0 {
		minIndent = 0
	}

	normalized := make([]byte, 0, len(content))
	indexMap := make([]int, 0, len(content))

	baseOffset := 0
	for _, line := range lines {
		remove := 0
		for remove < minIndent && remove < len(line) && (line[remove] == ' ' || line[remove] == '\t') {
			remove++
		}
		normalized = append(normalized, line[remove:]...)
		for origIdx := baseOffset + remove; origIdx < baseOffset+len(line); origIdx++ {
			indexMap = append(indexMap, origIdx)
		}
		baseOffset += len(line)
	}

	return normalized, indexMap
}

func splitInclusive(content []byte, sep byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range content {
		if b == sep {
			lines = append(lines, content[start:i+1])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

func trimTrailingNewline(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return line[:len(line)-1]
	}
	return line
}

func isBlank(line []byte) bool {
	for _, b := range line {
		if b != ' ' && b != '\t' && b != '\r' {
			return false
		}
	}
	return true
}

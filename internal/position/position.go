// Package position implements the 1-based line/byte-offset primitives shared
// by every stage of the scanner pipeline: rule-id parsing, markdown masking,
// code-unit extraction, and diagnostics all anchor on a Span or a Position.
package position

import "sort"

// Offset is a byte offset into a file's content, zero-based.
type Offset int

// Span is a half-open byte range [Start, End) over a file's content.
//
// Scanners build spans from inclusive indices internally (end index points
// at the last included byte) to avoid off-by-one slicing mistakes, then
// convert to this exclusive form via FromInclusive before handing a Span to
// any caller outside the scanning code. Every Span an API returns is
// exclusive.
type Span struct {
	Start Offset
	End   Offset
}

// FromInclusive builds a Span from a start index and an inclusive end index,
// both relative to some base offset. This is the only place inclusive-to-
// exclusive conversion happens; scanners should never roll their own.
func FromInclusive(base Offset, startIdx, endIdxInclusive int) Span {
	if endIdxInclusive < startIdx {
		panic("position: inclusive span end precedes start")
	}
	return Span{
		Start: base + Offset(startIdx),
		End:   base + Offset(endIdxInclusive) + 1,
	}
}

// Len reports the span's length in bytes.
func (s Span) Len() int {
	return int(s.End - s.Start)
}

// Position is a 1-based line and column pair.
type Position struct {
	Line   int // 1-based
	Column int // 1-based, byte offset into the line
}

// LineStarts is a precomputed index of the byte offset where each line of a
// file begins. Line 1 always starts at offset 0.
type LineStarts []Offset

// NewLineStarts scans content once and records the offset immediately after
// every '\n'. Line numbers it later reports are always 1-based.
func NewLineStarts(content []byte) LineStarts {
	starts := make(LineStarts, 1, 64)
	starts[0] = 0
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, Offset(i+1))
		}
	}
	return starts
}

// Line returns the 1-based line number containing offset. Binary search over
// the precomputed starts keeps this O(log n) regardless of file size.
func (ls LineStarts) Line(offset Offset) int {
	// sort.Search finds the first index whose start is > offset; the line
	// containing offset is the one before it.
	idx := sort.Search(len(ls), func(i int) bool { return ls[i] > offset })
	if idx == 0 {
		return 1
	}
	return idx
}

// Position converts a byte offset to a 1-based Position.
func (ls LineStarts) Position(offset Offset) Position {
	line := ls.Line(offset)
	col := int(offset-ls[line-1]) + 1
	return Position{Line: line, Column: col}
}

// LineStart returns the byte offset of the given 1-based line number, or the
// offset of the final known line if lineNumber overruns the file.
func (ls LineStarts) LineStart(lineNumber int) Offset {
	if lineNumber < 1 {
		return 0
	}
	if lineNumber > len(ls) {
		return ls[len(ls)-1]
	}
	return ls[lineNumber-1]
}

package codeunit

import (
	"regexp"
	"strings"

	"github.com/tracey-dev/tracey/internal/position"
)

// fallbackExtract provides a best-effort outline for source languages with
// no tree-sitter grammar wired in. It scans line by line, tracking whether
// the scanner is inside a block comment (string literals are not tracked),
// and recognizes a small set of declaration keywords common across C-family,
// Rust, Ruby, and Java-like languages. Span ends are approximated by
// matching brace depth back to zero; a declaration with no brace-delimited
// body spans only its own line (see fallbackSpanEnd). A comment run is
// attached as a doc comment only when no other line, blank or not,
// separates it from the declaration.
func fallbackExtract(content []byte) Outline {
	lineStarts := position.NewLineStarts(content)
	lines := strings.Split(string(content), "\n")

	var units []Unit
	var pendingComment []string

	inBlockComment := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inBlockComment {
			pendingComment = append(pendingComment, line)
			if strings.Contains(trimmed, "*/") {
				inBlockComment = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			pendingComment = append(pendingComment, line)
			if !strings.Contains(trimmed, "*/") {
				inBlockComment = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "///") {
			pendingComment = append(pendingComment, line)
			continue
		}

		if m := declKeyword.FindStringSubmatch(trimmed); m != nil {
			start := lineStarts.LineStart(i + 1)
			end := fallbackSpanEnd(lines, i, lineStarts)
			units = append(units, Unit{
				Kind:       fallbackKind(m[1]),
				Name:       m[2],
				Span:       position.Span{Start: start, End: end},
				DocComment: strings.Join(pendingComment, "\n"),
			})
		}

		pendingComment = nil
	}

	return Outline{Units: units}
}

// declKeyword recognizes a declaration line's keyword and the identifier
// that follows it, skipping generic/receiver/visibility noise between them.
var declKeyword = regexp.MustCompile(
	`^(?:pub(?:lic)?\s+|private\s+|protected\s+|static\s+|async\s+|export\s+)*` +
		`(func|function|def|fn|class|struct|interface|type|impl)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`,
)

func fallbackKind(keyword string) Kind {
	switch keyword {
	case "class", "struct", "interface", "type", "impl":
		return KindType
	default:
		return KindFunction
	}
}

// fallbackSpanEnd walks forward from a declaration's opening line, tracking
// brace depth, and returns the offset just past the line where depth returns
// to zero. A brace first opened on a later line still counts as this
// declaration's body. If no brace opens from the declaration line to the end
// of the file (indentation-based bodies), the span covers just the
// declaration line itself — callers only
// need enough span to attribute a same-line or immediately-following
// reference, and indentation-depth tracking is out of scope for a fallback.
func fallbackSpanEnd(lines []string, startLine int, lineStarts position.LineStarts) position.Offset {
	depth := 0
	opened := false
	for i := startLine; i < len(lines); i++ {
		for _, c := range lines[i] {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return lineStarts.LineStart(i+2) - 1
		}
	}
	return lineStarts.LineStart(startLine + 2)
}

// Package index builds the bidirectional spec<->code reference index (C6):
// for every source or markdown file in an impl's scope, it scans for
// markers, classifies them as References (definitions are specloader's
// concern), attributes each to the innermost enclosing code unit when the
// file has a structural outline, and — non-negotiably — filters every
// result down to the owning spec's inferred prefix so two specs with
// disjoint prefixes never contaminate each other's coverage data.
package index

import (
	"github.com/tracey-dev/tracey/internal/codeunit"
	"github.com/tracey-dev/tracey/internal/mdmask"
	"github.com/tracey-dev/tracey/internal/position"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// SourceFile is one file to scan for references: its path, raw content,
// and (for source files) the file extension used to select a code-unit
// extractor. IsMarkdown selects the comment-detection rule: inside a
// comment for source, inside non-code text for Markdown.
type SourceFile struct {
	Path       string
	Content    []byte
	Ext        string
	IsMarkdown bool
	IsTest     bool // matched by the impl's test_include globs
}

// Result is everything index.Scan produces for one file.
type Result struct {
	Path       string
	References []snapshot.Reference
	Outline    codeunit.Outline
	// TestOnlyViolations holds Impl/Define-leaning references found in a
	// test file, which is only supposed to carry Verify references —
	// internal/engine's Rebuild turns these into test-only-verb errors.
	TestOnlyViolations []snapshot.Reference
}

// ScanRawMarkers returns every marker in f eligible under the same
// comment/code-context rules Scan applies, without any prefix filtering.
// internal/diagnostics uses this to find markers whose prefix matches no
// configured spec at all (as opposed to a marker Scan simply wasn't asked
// about because it belongs to a different spec).
func ScanRawMarkers(f SourceFile) ([]ruleid.Marker, error) {
	isExcluded, _, err := exclusionRule(f)
	if err != nil {
		return nil, err
	}
	return ruleid.Scan(f.Content, isExcluded), nil
}

func exclusionRule(f SourceFile) (func(int) bool, codeunit.Outline, error) {
	ignored := ruleid.IgnoredByPragma(f.Content)

	if f.IsMarkdown {
		mask := mdmask.Build(f.Content)
		// References are still recognized inside inline code spans (quoting
		// a marker in `` `r[impl x]` `` is evidence of linkage) but not
		// inside fenced/indented code blocks, which are always excerpts.
		return func(bracketOpen int) bool {
			return mask.IsFencedOrIndentedBlock(bracketOpen) || ignored(bracketOpen)
		}, codeunit.Outline{}, nil
	}

	outline, err := codeunit.Extract(f.Ext, f.Content)
	if err != nil {
		return nil, codeunit.Outline{}, err
	}
	return func(bracketOpen int) bool {
		return !inComment(f.Content, bracketOpen) || ignored(bracketOpen)
	}, outline, nil
}

// Scan indexes one file, keeping only markers whose prefix equals
// allowedPrefix.
func Scan(f SourceFile, allowedPrefix string) (Result, error) {
	isExcluded, outline, err := exclusionRule(f)
	if err != nil {
		return Result{}, err
	}

	lineStarts := position.NewLineStarts(f.Content)
	markers := ruleid.Scan(f.Content, isExcluded)

	result := Result{Path: f.Path, Outline: outline}

	for _, m := range markers {
		if m.Prefix != allowedPrefix {
			continue
		}
		if m.Verb == ruleid.VerbDefine || m.Verb == "" {
			continue // Definitions are specloader's concern; verb-less source markers are not references
		}

		span := position.Span{Start: position.Offset(m.RawStart), End: position.Offset(m.RawEnd + 1)}
		ref := snapshot.Reference{
			Prefix: m.Prefix,
			Verb:   m.Verb,
			ID:     m.ID,
			Path:   f.Path,
			Span:   span,
			Line:   lineStarts.Line(span.Start),
		}
		if !f.IsMarkdown {
			if unit := outline.Enclosing(span.Start); unit != nil {
				ref.Unit = unit.Name
			}
		}

		result.References = append(result.References, ref)
		if f.IsTest && m.Verb != ruleid.VerbVerify {
			result.TestOnlyViolations = append(result.TestOnlyViolations, ref)
		}
	}

	return result, nil
}

// inComment reports whether offset falls inside a line or block comment of
// f's content. It is a linear best-effort scanner shared across languages:
// most source languages tracey supports use "//"/"/* */" or "#" comments,
// so a single pass recognizing both conventions covers the whitelist
// without a per-language comment grammar.
func inComment(content []byte, offset int) bool {
	inLine := false
	inBlock := false
	inString := false
	var stringQuote byte

	for i := 0; i < offset && i < len(content); i++ {
		c := content[i]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
			}
		case inBlock:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlock = false
				i++
			}
		case inString:
			if c == '\\' {
				i++
				continue
			}
			if c == stringQuote {
				inString = false
			}
		case c == '"' || c == '\'' || c == '`':
			inString = true
			stringQuote = c
		case c == '#':
			inLine = true
		case c == '/' && i+1 < len(content) && content[i+1] == '/':
			inLine = true
			i++
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			inBlock = true
			i++
		}
	}

	return inLine || inBlock
}

// Package specloader parses a spec's Markdown files into an ordered rule
// catalog: one Definition per declared base id (at its highest version),
// with the previous version's body retained for hover-diff display, and the
// prefix that must be used consistently across all of the spec's Define
// markers.
package specloader

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/tracey-dev/tracey/internal/mdmask"
	"github.com/tracey-dev/tracey/internal/position"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// File is one Markdown file contributing to a spec, in the document order
// the manifest should preserve (lexicographic path order per the include
// glob's matches).
type File struct {
	Path    string
	Content []byte
}

// DuplicateDefinition records a (base, version) pair declared more than
// once; internal/engine's Rebuild turns these into duplicate-definition errors.
type DuplicateDefinition struct {
	ID   ruleid.RuleID
	Path string
	Line int
}

// Manifest is the result of loading one spec's files.
type Manifest struct {
	SpecName    string
	Prefix      string
	Definitions []snapshot.Definition
	Duplicates  []DuplicateDefinition
}

var headingPattern = regexp.MustCompile(`^#{1,6}\s`)

// Load parses files in order and produces a Manifest. A spec whose Defines
// use zero or more than one distinct prefix returns an error; the caller
// (internal/engine) is responsible for retaining the previous good
// manifest for that spec when this happens.
func Load(specName string, files []File) (Manifest, error) {
	var allDefs []snapshot.Definition
	var duplicates []DuplicateDefinition
	prefixes := map[string]bool{}

	for _, f := range files {
		defs, dups, filePrefixes := loadFile(f)
		allDefs = append(allDefs, defs...)
		duplicates = append(duplicates, dups...)
		for p := range filePrefixes {
			prefixes[p] = true
		}
	}

	if len(prefixes) == 0 {
		return Manifest{}, fmt.Errorf("spec %q has no Define markers; cannot infer a prefix", specName)
	}
	if len(prefixes) > 1 {
		names := make([]string, 0, len(prefixes))
		for p := range prefixes {
			names = append(names, p)
		}
		sort.Strings(names)
		return Manifest{}, fmt.Errorf("spec %q uses multiple distinct prefixes in its Define markers: %v", specName, names)
	}
	var prefix string
	for p := range prefixes {
		prefix = p
	}

	finalDefs, moreDups := collapseVersions(allDefs)
	duplicates = append(duplicates, moreDups...)

	return Manifest{
		SpecName:    specName,
		Prefix:      prefix,
		Definitions: finalDefs,
		Duplicates:  duplicates,
	}, nil
}

// loadFile scans one file for Define markers (explicit `Define` verb, or an
// absent verb inside a blockquote or immediately under a heading) and
// slices each one's raw body up to the next definition or heading.
func loadFile(f File) (defs []snapshot.Definition, dups []DuplicateDefinition, prefixes map[string]bool) {
	prefixes = map[string]bool{}
	mask := mdmask.Build(f.Content)
	lineStarts := position.NewLineStarts(f.Content)
	ignored := ruleid.IgnoredByPragma(f.Content)

	markers := ruleid.Scan(f.Content, func(bracketOpen int) bool {
		return mask.IsCode(bracketOpen) || ignored(bracketOpen)
	})

	headingOffsets := findHeadingOffsets(f.Content, lineStarts, mask)

	type defMarker struct {
		marker ruleid.Marker
		line   int
	}
	var defMarkers []defMarker

	for _, m := range markers {
		if !isDefine(m, f.Content, lineStarts) {
			continue
		}
		defMarkers = append(defMarkers, defMarker{marker: m, line: lineStarts.Line(position.Offset(m.RawStart))})
		prefixes[m.Prefix] = true
	}

	seen := map[ruleid.RuleID]bool{}
	for i, dm := range defMarkers {
		bodyStart := dm.marker.RawEnd + 1
		bodyEnd := len(f.Content)
		for _, h := range headingOffsets {
			if h > dm.marker.RawEnd && h < bodyEnd {
				bodyEnd = h
			}
		}
		if i+1 < len(defMarkers) && defMarkers[i+1].marker.RawStart < bodyEnd {
			bodyEnd = defMarkers[i+1].marker.RawStart
		}
		if bodyStart > bodyEnd {
			bodyStart = bodyEnd
		}

		if seen[dm.marker.ID] {
			dups = append(dups, DuplicateDefinition{ID: dm.marker.ID, Path: f.Path, Line: dm.line})
			continue
		}
		seen[dm.marker.ID] = true

		defs = append(defs, snapshot.Definition{
			ID:   dm.marker.ID,
			Path: f.Path,
			Span: position.Span{Start: position.Offset(dm.marker.RawStart), End: position.Offset(dm.marker.RawEnd + 1)},
			Line: dm.line,
			Body: string(f.Content[bodyStart:bodyEnd]),
		})
	}

	return defs, dups, prefixes
}

// isDefine reports whether marker m should be treated as a Define: either
// an explicit Define verb, or a verb-less marker sitting in a blockquote or
// immediately following a heading line.
func isDefine(m ruleid.Marker, content []byte, lineStarts position.LineStarts) bool {
	if m.Verb == ruleid.VerbDefine {
		return true
	}
	if m.Verb != "" {
		return false
	}

	line := lineStarts.Line(position.Offset(m.RawStart))
	lineStart := lineStarts.LineStart(line)
	lineEnd := len(content)
	if int(lineStart) < len(content) {
		for i := int(lineStart); i < len(content); i++ {
			if content[i] == '\n' {
				lineEnd = i
				break
			}
		}
	}
	trimmed := trimLeadingSpace(content[lineStart:lineEnd])
	if len(trimmed) > 0 && trimmed[0] == '>' {
		return true
	}

	if line > 1 {
		prevStart := lineStarts.LineStart(line - 1)
		prevEnd := int(lineStart) - 1
		if prevEnd >= int(prevStart) {
			prevTrimmed := trimLeadingSpace(content[prevStart:prevEnd])
			if headingPattern.Match(prevTrimmed) {
				return true
			}
		}
	}

	return false
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return b[i:]
}

func findHeadingOffsets(content []byte, lineStarts position.LineStarts, mask mdmask.Mask) []int {
	var offsets []int
	for line := 1; line <= len(lineStarts); line++ {
		start := int(lineStarts.LineStart(line))
		if start >= len(content) {
			break
		}
		end := len(content)
		for i := start; i < len(content); i++ {
			if content[i] == '\n' {
				end = i
				break
			}
		}
		if mask.IsCode(start) {
			continue
		}
		if headingPattern.Match(content[start:end]) {
			offsets = append(offsets, start)
		}
	}
	return offsets
}

// collapseVersions groups per-base definitions, keeping only the highest
// version with its immediately-prior body attached as Previous. Any exact
// (base, version) repeat across files is reported as a duplicate.
func collapseVersions(defs []snapshot.Definition) ([]snapshot.Definition, []DuplicateDefinition) {
	type versionRecord struct {
		def   snapshot.Definition
		order int
	}
	byBase := map[string][]versionRecord{}
	var baseOrder []string

	for i, d := range defs {
		if _, ok := byBase[d.ID.Base]; !ok {
			baseOrder = append(baseOrder, d.ID.Base)
		}
		byBase[d.ID.Base] = append(byBase[d.ID.Base], versionRecord{def: d, order: i})
	}

	var result []snapshot.Definition
	var dups []DuplicateDefinition

	for _, base := range baseOrder {
		records := byBase[base]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].def.ID.Version < records[j].def.ID.Version
		})

		seenVersion := map[int]bool{}
		var kept []versionRecord
		for _, r := range records {
			if seenVersion[r.def.ID.Version] {
				dups = append(dups, DuplicateDefinition{ID: r.def.ID, Path: r.def.Path, Line: r.def.Line})
				continue
			}
			seenVersion[r.def.ID.Version] = true
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			continue
		}

		latest := kept[len(kept)-1].def
		if len(kept) > 1 {
			latest.Previous = kept[len(kept)-2].def.Body
		}
		result = append(result, latest)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return indexOfBase(baseOrder, result[i].ID.Base) < indexOfBase(baseOrder, result[j].ID.Base)
	})

	return result, dups
}

func indexOfBase(order []string, base string) int {
	for i, b := range order {
		if b == base {
			return i
		}
	}
	return -1
}

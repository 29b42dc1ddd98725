// Package lspops implements the editor-facing operations from spec.md
// §4.12 as pure functions keyed by a path and byte offset over an already-
// built snapshot.Snapshot. Every operation here is side-effect-free;
// cmd/tracey's LSP server turns the returned values into protocol messages.
package lspops

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tracey-dev/tracey/internal/position"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// Every operation below is keyed by a byte offset within path's content;
// callers resolve an editor's (line, character) cursor to that offset via
// internal/position.LineStarts before calling in.

// HoverResult is what Hover returns for a marker under the cursor.
type HoverResult struct {
	RuleID       string
	Verb         string
	Body         string
	Previous     string
	ImplRefs     []snapshot.Reference
	VerifyRefs   []snapshot.Reference
	Found        bool
}

// markerAt locates the reference or definition whose span contains
// offset within path's content, returning its rule-id and verb (verb is
// "Define" for a definition).
func markerAt(s snapshot.Snapshot, path string, offset position.Offset) (ruleid.RuleID, string, bool) {
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.Path == path && offset >= r.Definition.Span.Start && offset < r.Definition.Span.End {
				return r.Definition.ID, "Define", true
			}
		}
	}
	for _, ref := range s.SourceReqsByFile[path] {
		if offset >= ref.Span.Start && offset < ref.Span.End {
			return ref.ID, string(ref.Verb), true
		}
	}
	return ruleid.RuleID{}, "", false
}

// Hover resolves the marker under (path, offset) to its rule body plus
// impl/verify reference lists and a previous-version diff hint.
func Hover(s snapshot.Snapshot, path string, offset position.Offset) HoverResult {
	id, verb, found := markerAt(s, path, offset)
	if !found {
		return HoverResult{}
	}

	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.ID == id {
				return HoverResult{
					RuleID:     id.String(),
					Verb:       verb,
					Body:       r.Definition.Body,
					Previous:   r.Definition.Previous,
					ImplRefs:   r.Impl,
					VerifyRefs: r.Verify,
					Found:      true,
				}
			}
		}
	}
	return HoverResult{RuleID: id.String(), Verb: verb, Found: true}
}

// DefinitionLocation is a single spec file+line target.
type DefinitionLocation struct {
	Path string
	Line int
}

// Definition resolves a reference at (path, offset) to its Define's
// location. ok is false when the marker under the cursor is itself a
// Define, or there is no marker at all.
func Definition(s snapshot.Snapshot, path string, offset position.Offset) (DefinitionLocation, bool) {
	id, verb, found := markerAt(s, path, offset)
	if !found || verb == "Define" {
		return DefinitionLocation{}, false
	}
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.ID == id {
				return DefinitionLocation{Path: r.Definition.Path, Line: r.Definition.Line}, true
			}
		}
	}
	return DefinitionLocation{}, false
}

// Implementations resolves a Define at (path, offset) to every Impl
// reference elsewhere in the workspace.
func Implementations(s snapshot.Snapshot, path string, offset position.Offset) []snapshot.Reference {
	id, verb, found := markerAt(s, path, offset)
	if !found || verb != "Define" {
		return nil
	}
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.ID == id {
				return r.Impl
			}
		}
	}
	return nil
}

// References returns every marker (Define and non-Define) sharing the
// rule-id under (path, offset), across the whole workspace.
func References(s snapshot.Snapshot, path string, offset position.Offset) []snapshot.Reference {
	id, _, found := markerAt(s, path, offset)
	if !found {
		return nil
	}

	var out []snapshot.Reference
	seen := map[string]bool{}
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.ID != id {
				continue
			}
			key := r.Definition.Path + "#define"
			if !seen[key] {
				seen[key] = true
				out = append(out, snapshot.Reference{
					Verb: ruleid.VerbDefine,
					ID:   r.Definition.ID,
					Path: r.Definition.Path,
					Span: r.Definition.Span,
					Line: r.Definition.Line,
				})
			}
			out = append(out, r.Impl...)
			out = append(out, r.Verify...)
			out = append(out, r.Depends...)
			out = append(out, r.Related...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// CompletionItem is one candidate for Completion.
type CompletionItem struct {
	Label  string
	Insert string
}

var verbLabels = []string{"Define", "Impl", "Verify", "Depends", "Related"}

// Completion triggers on a "[" or space inside an unfinished marker body
// (typedPrefix is the text already typed after the trigger, lowercase).
// Before any verb keyword is recognized it offers the verb list; once a
// verb has been typed it fuzzy-matches against known rule-ids, preserving
// any "+version" suffix the user already typed in the insert text.
func Completion(s snapshot.Snapshot, typedPrefix string) []CompletionItem {
	typedPrefix = strings.TrimSpace(typedPrefix)
	fields := strings.Fields(typedPrefix)

	if len(fields) == 0 {
		return verbCompletions("")
	}
	if len(fields) == 1 {
		if isKnownVerb(fields[0]) {
			return ruleIDCompletions(s, "")
		}
		return verbCompletions(fields[0])
	}

	return ruleIDCompletions(s, fields[len(fields)-1])
}

func isKnownVerb(s string) bool {
	for _, v := range verbLabels {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func verbCompletions(typed string) []CompletionItem {
	var out []CompletionItem
	for _, v := range verbLabels {
		if typed == "" || strings.HasPrefix(strings.ToLower(v), strings.ToLower(typed)) {
			out = append(out, CompletionItem{Label: v, Insert: strings.ToLower(v)})
		}
	}
	return out
}

func ruleIDCompletions(s snapshot.Snapshot, typed string) []CompletionItem {
	typedBase, suffix := typed, ""
	if i := strings.IndexByte(typed, '+'); i >= 0 {
		typedBase, suffix = typed[:i], typed[i:]
	}
	seen := map[string]bool{}
	var out []CompletionItem
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			id := r.Definition.ID.String()
			if seen[id] {
				continue
			}
			if typedBase != "" && !strings.Contains(strings.ToLower(id), strings.ToLower(typedBase)) {
				continue
			}
			seen[id] = true
			insert := id
			if suffix != "" {
				insert = r.Definition.ID.Base + suffix
			}
			out = append(out, CompletionItem{Label: id, Insert: insert})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// TextEdit is one span replacement for Rename.
type TextEdit struct {
	Path    string
	Span    position.Span
	NewText string
}

// Rename renames the rule-id under (path, offset) to newBase, producing
// edits across every file that carries the old base (definition and every
// reference), always rewriting only the base component and leaving any
// "+version" suffix in reference text untouched.
func Rename(s snapshot.Snapshot, path string, offset position.Offset, newBase string) []TextEdit {
	id, _, found := markerAt(s, path, offset)
	if !found {
		return nil
	}
	return RenameBase(s, id.Base, newBase)
}

// RenameBase produces the same edits as Rename, but keyed directly by the
// old base rather than a cursor position — used by the "rename unknown
// requirement" code action, which walks the whole workspace for an
// orphaned id with no Define to anchor a cursor on.
func RenameBase(s snapshot.Snapshot, oldBase, newBase string) []TextEdit {
	var edits []TextEdit
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.ID.Base == oldBase {
				edits = append(edits, TextEdit{Path: r.Definition.Path, Span: idSpan(r.Definition.Span, r.Definition.ID), NewText: replaceBase(r.Definition.ID, newBase)})
			}
			edits = append(edits, renameRefs(r.Impl, oldBase, newBase)...)
			edits = append(edits, renameRefs(r.Verify, oldBase, newBase)...)
			edits = append(edits, renameRefs(r.Depends, oldBase, newBase)...)
			edits = append(edits, renameRefs(r.Related, oldBase, newBase)...)
		}
	}
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].Path != edits[j].Path {
			return edits[i].Path < edits[j].Path
		}
		return edits[i].Span.Start < edits[j].Span.Start
	})
	return edits
}

func renameRefs(refs []snapshot.Reference, oldBase, newBase string) []TextEdit {
	var edits []TextEdit
	for _, ref := range refs {
		if ref.ID.Base == oldBase {
			edits = append(edits, TextEdit{Path: ref.Path, Span: idSpan(ref.Span, ref.ID), NewText: replaceBase(ref.ID, newBase)})
		}
	}
	return edits
}

// idSpan narrows a marker's span to its rule-id text, which ends just before
// the closing ']', so an edit leaves the prefix, brackets and verb in place.
func idSpan(span position.Span, id ruleid.RuleID) position.Span {
	end := span.End - 1
	return position.Span{Start: end - position.Offset(len(id.String())), End: end}
}

func replaceBase(id ruleid.RuleID, newBase string) string {
	return ruleid.RuleID{Base: newBase, Version: id.Version}.String()
}

// TokenKind classifies one semantic-token span.
type TokenKind string

const (
	TokenPrefix TokenKind = "prefix"
	TokenVerb   TokenKind = "verb"
	TokenRuleID TokenKind = "ruleid"
)

// SemanticToken is one classified span within a file.
type SemanticToken struct {
	Span position.Span
	Kind TokenKind
}

// SemanticTokens classifies every marker occurrence in path (definitions
// and references) into prefix/verb/rule-id spans for editor syntax
// highlighting, per spec.md §4.12's requirement that an editor be able to
// paint `PREFIX[VERB BASE+VERSION]` as three distinct token kinds rather
// than one run. A marker's overall span is `internal/ruleid`'s canonical
// `PREFIX[VERB BASE(+VERSION)?]` layout, so the sub-spans are derived
// arithmetically from the known field lengths rather than re-scanning the
// file's bytes (SemanticTokens only has the already-built snapshot, not
// raw file content).
func SemanticTokens(s snapshot.Snapshot, path string) []SemanticToken {
	var out []SemanticToken
	for _, ref := range s.SourceReqsByFile[path] {
		out = append(out, markerTokens(ref.Span, ref.Prefix, string(ref.Verb), ref.ID.String())...)
	}
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.Path == path {
				// Definition doesn't retain whether its source marker spelled out
				// an explicit verb keyword (spec.md §3: verb-less is the common
				// Define shorthand), so its own prefix is looked up from the
				// owning spec's inferred prefix instead of a stored field.
				prefix := specPrefix(s, r.Definition.Spec)
				out = append(out, markerTokens(r.Definition.Span, prefix, "", r.Definition.ID.String())...)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// markerTokens splits one marker's span into prefix/verb/rule-id sub-spans
// given the already-classified field strings, assuming the canonical
// single-space `PREFIX[VERB RULEID]` (or verb-less `PREFIX[RULEID]`)
// layout every marker is written in.
func markerTokens(span position.Span, prefix, verb, ruleID string) []SemanticToken {
	var out []SemanticToken
	pos := span.Start
	if prefix != "" {
		out = append(out, SemanticToken{Span: position.Span{Start: pos, End: pos + position.Offset(len(prefix))}, Kind: TokenPrefix})
	}
	pos += position.Offset(len(prefix)) + 1 // prefix (if any) plus '['
	if verb != "" {
		verbText := strings.ToLower(verb)
		out = append(out, SemanticToken{Span: position.Span{Start: pos, End: pos + position.Offset(len(verbText))}, Kind: TokenVerb})
		pos += position.Offset(len(verbText)) + 1 // skip the separating space
	}
	out = append(out, SemanticToken{Span: position.Span{Start: pos, End: pos + position.Offset(len(ruleID))}, Kind: TokenRuleID})
	return out
}

// specPrefix looks up specName's inferred prefix from s.Config, the
// normalized per-spec view Rebuild publishes alongside the rule index.
func specPrefix(s snapshot.Snapshot, specName string) string {
	for _, spec := range s.Config {
		if spec.Name == specName {
			return spec.Prefix
		}
	}
	return ""
}

// CodeLens is a reference-count annotation shown adjacent to a Define.
type CodeLens struct {
	Line  int
	Title string
}

// CodeLenses returns one lens per Definition in path, reporting how many
// Impl/Verify references it has.
func CodeLenses(s snapshot.Snapshot, path string) []CodeLens {
	type counts struct{ line, impl, verify int }
	byID := map[ruleid.RuleID]*counts{}
	var order []ruleid.RuleID
	for _, rules := range s.ForwardByImpl {
		for _, r := range rules {
			if r.Definition.Path != path {
				continue
			}
			c, ok := byID[r.Definition.ID]
			if !ok {
				c = &counts{line: r.Definition.Line}
				byID[r.Definition.ID] = c
				order = append(order, r.Definition.ID)
			}
			c.impl += len(r.Impl)
			c.verify += len(r.Verify)
		}
	}
	var out []CodeLens
	for _, id := range order {
		c := byID[id]
		out = append(out, CodeLens{Line: c.line, Title: formatLensTitle(c.impl, c.verify)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func formatLensTitle(impl, verify int) string {
	return strings.Join([]string{pluralize(impl, "impl"), pluralize(verify, "test")}, ", ")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// InlayHint is a rule-id hint shown adjacent to a reference marker.
type InlayHint struct {
	Position position.Offset
	Label    string
}

// InlayHints returns one hint per reference in path, placed just past the
// marker, naming the rule-id it points to.
func InlayHints(s snapshot.Snapshot, path string) []InlayHint {
	var out []InlayHint
	for _, ref := range s.SourceReqsByFile[path] {
		out = append(out, InlayHint{Position: ref.Span.End, Label: ref.ID.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

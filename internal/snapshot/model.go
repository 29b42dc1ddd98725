// Package snapshot defines the Engine's published data model: the
// DashboardData/Snapshot value and the entities it is built from
// (Definition, Reference, CodeUnit, Diagnostic). A Snapshot is produced
// wholesale by one rebuild and is immutable after publication — callers
// read it without holding any lock.
package snapshot

import (
	"github.com/tracey-dev/tracey/internal/position"
	"github.com/tracey-dev/tracey/internal/ruleid"
)

// Definition is a rule declared in a spec file.
type Definition struct {
	ID       ruleid.RuleID
	Spec     string
	Path     string
	Span     position.Span
	Line     int
	Body     string // raw markdown body, marker to next definition/heading
	Previous string // body of the prior (lower) version, if a bump occurred
	Status   string // optional status metadata; internal/specloader leaves it empty
}

// Reference is a non-Define marker occurrence.
type Reference struct {
	Prefix string
	Verb   ruleid.Verb
	ID     ruleid.RuleID
	Path   string
	Span   position.Span
	Line   int
	// Unit is the name of the innermost enclosing code unit, empty for
	// markdown files or references outside any unit.
	Unit string
}

// RuleWithRefs pairs a Definition with the references that target it,
// grouped by verb for the coverage roll-up views.
type RuleWithRefs struct {
	Definition Definition
	Impl       []Reference
	Verify     []Reference
	Depends    []Reference
	Related    []Reference
}

// Covered reports whether the rule has at least one Impl reference.
func (r RuleWithRefs) Covered() bool { return len(r.Impl) > 0 }

// Verified reports whether the rule has at least one Verify reference.
func (r RuleWithRefs) Verified() bool { return len(r.Verify) > 0 }

// CodeUnit is a structural chunk of a source file, annotated with the
// rule-ids referenced anywhere inside it (including its doc comment).
type CodeUnit struct {
	Kind    string
	Name    string
	Line    position.Position
	EndLine int
	RuleIDs []string
}

// FileEntry is the per-file rollup used by reverse_by_file: a file's code
// units plus simple coverage counters.
type FileEntry struct {
	Path      string
	CodeUnits []CodeUnit
	Total     int
	Covered   int
}

// SpecContent holds a spec's concatenated raw content plus its canonical
// source file, for hover/diff display.
type SpecContent struct {
	Content    string
	SourceFile string
}

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// DiagnosticKind names the specific rule a Diagnostic was raised by.
type DiagnosticKind string

const (
	DiagOrphaned            DiagnosticKind = "orphaned"
	DiagUnknownPrefix       DiagnosticKind = "unknown-prefix"
	DiagStale               DiagnosticKind = "stale"
	DiagTestOnlyVerb        DiagnosticKind = "test-only-verb"
	DiagDuplicateDefinition DiagnosticKind = "duplicate-definition"
	DiagCycle               DiagnosticKind = "cycle"
	DiagConfigError         DiagnosticKind = "config-error"
)

// Diagnostic is one workspace diagnostic, attached to a file and line.
type Diagnostic struct {
	Kind     DiagnosticKind
	Severity Severity
	Spec     string // empty for workspace-wide diagnostics (e.g. config-error, unknown-prefix)
	Path     string
	Line     int
	Message  string
	RuleID   string // empty when not rule-specific (e.g. config-error)
}

// ImplKey identifies one (spec, impl) pair for forward_by_impl.
type ImplKey struct {
	Spec string
	Impl string
}

// NormalizedSpec is the config() query's per-spec view: the configured
// shape plus the prefix inferred from its Define markers.
type NormalizedSpec struct {
	Name      string
	SourceURL string
	Prefix    string
	Include   []string
	Impls     []string
}

// Snapshot is the Engine's complete published data cell (DashboardData).
type Snapshot struct {
	Version     uint64
	ContentHash uint64

	Config      []NormalizedSpec
	ConfigError string // empty when the last config load was valid

	ForwardByImpl     map[ImplKey][]RuleWithRefs
	ReverseByFile     map[string]FileEntry
	SourceReqsByFile  map[string][]Reference
	SpecsContent      map[string]SpecContent
	WorkspaceDiagnostics map[string][]Diagnostic
}

// Empty returns the zero-value snapshot the Engine publishes before any
// successful rebuild, or in place of a rebuild that failed to load config.
func Empty() Snapshot {
	return Snapshot{
		ForwardByImpl:        map[ImplKey][]RuleWithRefs{},
		ReverseByFile:        map[string]FileEntry{},
		SourceReqsByFile:     map[string][]Reference{},
		SpecsContent:         map[string]SpecContent{},
		WorkspaceDiagnostics: map[string][]Diagnostic{},
	}
}

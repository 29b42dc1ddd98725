// Package diagnostics computes the per-file and workspace-wide diagnostics
// described in spec.md §4.10: orphaned references, stale version
// references, unknown prefixes, and dependency cycles. The test-only-verb,
// duplicate-definition and config-error diagnostics are built by
// internal/engine's Rebuild. Diagnostics are pure functions over
// already-scanned data — they never touch the filesystem themselves.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/tracey-dev/tracey/internal/index"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
	"github.com/tracey-dev/tracey/internal/specloader"
)

// ComputeImplDiagnostics reports orphaned and stale references found among
// refs against manifest's definitions. Both require the same per-spec
// prefix-filtered reference set an impl scan already produced.
func ComputeImplDiagnostics(specName string, manifest specloader.Manifest, refs []snapshot.Reference) []snapshot.Diagnostic {
	latestVersion := map[string]int{}
	for _, def := range manifest.Definitions {
		latestVersion[def.ID.Base] = def.ID.Version
	}

	var out []snapshot.Diagnostic
	for _, ref := range refs {
		latest, ok := latestVersion[ref.ID.Base]
		if !ok {
			out = append(out, snapshot.Diagnostic{
				Kind:     snapshot.DiagOrphaned,
				Severity: snapshot.SeverityError,
				Spec:     specName,
				Path:     ref.Path,
				Line:     ref.Line,
				Message:  fmt.Sprintf("reference to %s has no matching definition in spec %q", ref.ID.String(), specName),
				RuleID:   ref.ID.String(),
			})
			continue
		}
		if latest > ref.ID.Version {
			out = append(out, snapshot.Diagnostic{
				Kind:     snapshot.DiagStale,
				Severity: snapshot.SeverityWarning,
				Spec:     specName,
				Path:     ref.Path,
				Line:     ref.Line,
				Message:  fmt.Sprintf("reference to %s is stale; spec now defines %s+%d", ref.ID.String(), ref.ID.Base, latest),
				RuleID:   ref.ID.String(),
			})
		}
	}

	out = append(out, CycleDiagnostics(specName, manifest)...)

	return out
}

// CycleDiagnostics detects cycles among a spec's Depends markers: a
// Definition's own raw body may contain `prefix[depends other.base]`
// markers declaring that its rule depends on another rule in the same
// spec. The edge runs from the owning definition's base to the referenced
// base; a cycle among those edges is reported once per participating node.
func CycleDiagnostics(specName string, manifest specloader.Manifest) []snapshot.Diagnostic {
	edges := map[string]map[string]bool{}
	for _, def := range manifest.Definitions {
		edges[def.ID.Base] = map[string]bool{}
		for _, m := range ruleid.Scan([]byte(def.Body), nil) {
			if m.Verb == ruleid.VerbDepends && m.Prefix == manifest.Prefix {
				edges[def.ID.Base][m.ID.Base] = true
			}
		}
	}

	var cycles []snapshot.Diagnostic
	visiting := map[string]bool{}
	visited := map[string]bool{}
	reported := map[string]bool{}
	var stack []string

	var visit func(node string)
	visit = func(node string) {
		visiting[node] = true
		stack = append(stack, node)
		for next := range edges[node] {
			if visiting[next] {
				for i := len(stack) - 1; i >= 0; i-- {
					member := stack[i]
					if !reported[member] {
						reported[member] = true
						cycles = append(cycles, snapshot.Diagnostic{
							Kind:     snapshot.DiagCycle,
							Severity: snapshot.SeverityError,
							Spec:     specName,
							Message:  fmt.Sprintf("dependency cycle detected involving %s", member),
							RuleID:   member,
						})
					}
					if member == next {
						break
					}
				}
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}
		stack = stack[:len(stack)-1]
		visiting[node] = false
		visited[node] = true
	}

	var nodes []string
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if !visited[n] {
			visit(n)
		}
	}

	return cycles
}

// ComputeUnknownPrefixes reports markers in files whose prefix is not used
// by any configured spec. knownPrefixes is the set of prefixes inferred
// across every successfully loaded spec manifest.
func ComputeUnknownPrefixes(files []index.SourceFile, knownPrefixes map[string]bool) ([]snapshot.Diagnostic, error) {
	var out []snapshot.Diagnostic
	for _, f := range files {
		markers, err := index.ScanRawMarkers(f)
		if err != nil {
			return nil, err
		}
		for _, m := range markers {
			if knownPrefixes[m.Prefix] {
				continue
			}
			out = append(out, snapshot.Diagnostic{
				Kind:     snapshot.DiagUnknownPrefix,
				Severity: snapshot.SeverityError,
				Path:     f.Path,
				Message:  fmt.Sprintf("marker prefix %q does not match any configured spec", m.Prefix),
			})
		}
	}
	return out, nil
}

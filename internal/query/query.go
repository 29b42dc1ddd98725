// Package query implements the read-only query operations (C11): pure
// functions over an already-built snapshot.Snapshot. None of them touch the
// filesystem or the Engine directly — callers (the IPC service, the CLI)
// fetch a Snapshot once and run as many of these as they need against it.
package query

import (
	"sort"

	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// ImplStatus is one (spec, impl)'s coverage roll-up.
type ImplStatus struct {
	Spec     string
	Impl     string
	Total    int
	Covered  int
	Verified int
}

// Status computes a coverage roll-up for every (spec, impl) pair present in
// the snapshot's ForwardByImpl, in stable (spec, impl) order.
func Status(s snapshot.Snapshot) []ImplStatus {
	keys := sortedImplKeys(s)
	out := make([]ImplStatus, 0, len(keys))
	for _, k := range keys {
		rules := s.ForwardByImpl[k]
		st := ImplStatus{Spec: k.Spec, Impl: k.Impl, Total: len(rules)}
		for _, r := range rules {
			if r.Covered() {
				st.Covered++
			}
			if r.Verified() {
				st.Verified++
			}
		}
		out = append(out, st)
	}
	return out
}

// Filter narrows a query to a spec/impl/prefix combination; any empty field
// is unconstrained.
type Filter struct {
	Spec   string
	Impl   string
	Prefix string
}

func (f Filter) matches(k snapshot.ImplKey) bool {
	if f.Spec != "" && f.Spec != k.Spec {
		return false
	}
	if f.Impl != "" && f.Impl != k.Impl {
		return false
	}
	return true
}

// Uncovered lists every rule with zero Impl references, across the
// matching (spec, impl) pairs, ordered by spec, then impl, then rule-id.
func Uncovered(s snapshot.Snapshot, f Filter) []snapshot.RuleWithRefs {
	return filterRules(s, f, func(r snapshot.RuleWithRefs) bool { return !r.Covered() })
}

// Untested lists every rule with zero Verify references.
func Untested(s snapshot.Snapshot, f Filter) []snapshot.RuleWithRefs {
	return filterRules(s, f, func(r snapshot.RuleWithRefs) bool { return !r.Verified() })
}

// Stale lists every DiagStale diagnostic in the workspace; f.Spec, if set,
// restricts to that spec.
func Stale(s snapshot.Snapshot, f Filter) []snapshot.Diagnostic {
	var out []snapshot.Diagnostic
	for _, diags := range s.WorkspaceDiagnostics {
		for _, d := range diags {
			if d.Kind != snapshot.DiagStale {
				continue
			}
			if f.Spec != "" && d.Spec != f.Spec {
				continue
			}
			out = append(out, d)
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

func filterRules(s snapshot.Snapshot, f Filter, keep func(snapshot.RuleWithRefs) bool) []snapshot.RuleWithRefs {
	specPrefix := map[string]string{}
	for _, sp := range s.Config {
		specPrefix[sp.Name] = sp.Prefix
	}

	var out []snapshot.RuleWithRefs
	for _, k := range sortedImplKeys(s) {
		if !f.matches(k) {
			continue
		}
		if f.Prefix != "" && specPrefix[k.Spec] != f.Prefix {
			continue
		}
		for _, r := range s.ForwardByImpl[k] {
			if keep(r) {
				out = append(out, r)
			}
		}
	}
	return out
}

// FileCoverage is one file's entry in the Unmapped tree.
type FileCoverage struct {
	Path    string
	Total   int
	Covered int
}

// Unmapped lists files with at least one zero-reference code unit, in path
// order. pathPrefix, if non-empty, restricts results to files under it.
func Unmapped(s snapshot.Snapshot, pathPrefix string) []FileCoverage {
	var paths []string
	for p := range s.ReverseByFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []FileCoverage
	for _, p := range paths {
		if pathPrefix != "" && !hasPathPrefix(p, pathPrefix) {
			continue
		}
		fe := s.ReverseByFile[p]
		if fe.Covered < fe.Total {
			out = append(out, FileCoverage{Path: p, Total: fe.Total, Covered: fe.Covered})
		}
	}
	return out
}

// RuleDetail is the full picture of one rule-id for hover/rule().
type RuleDetail struct {
	Definition snapshot.Definition
	Impl       []snapshot.Reference
	Verify     []snapshot.Reference
	Depends    []snapshot.Reference
	Related    []snapshot.Reference
	Previous   string
}

// Rule finds id across every (spec, impl), returning its full reference
// breakdown. ok is false if id matches no known definition.
func Rule(s snapshot.Snapshot, id ruleid.RuleID) (RuleDetail, bool) {
	for _, k := range sortedImplKeys(s) {
		for _, r := range s.ForwardByImpl[k] {
			if r.Definition.ID == id {
				return RuleDetail{
					Definition: r.Definition,
					Impl:       r.Impl,
					Verify:     r.Verify,
					Depends:    r.Depends,
					Related:    r.Related,
					Previous:   r.Definition.Previous,
				}, true
			}
		}
	}
	return RuleDetail{}, false
}

// Validate returns the diagnostics scoped to spec (optional; empty means
// unconstrained). Workspace-wide diagnostics (config errors, unknown
// prefixes) carry no Spec and are always included, since they belong to no
// single spec's validation scope but are never safe to hide either.
func Validate(s snapshot.Snapshot, spec string) []snapshot.Diagnostic {
	var out []snapshot.Diagnostic
	for _, diags := range s.WorkspaceDiagnostics {
		for _, d := range diags {
			if spec != "" && d.Spec != "" && d.Spec != spec {
				continue
			}
			out = append(out, d)
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

func sortedImplKeys(s snapshot.Snapshot) []snapshot.ImplKey {
	keys := make([]snapshot.ImplKey, 0, len(s.ForwardByImpl))
	for k := range s.ForwardByImpl {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Spec != keys[j].Spec {
			return keys[i].Spec < keys[j].Spec
		}
		return keys[i].Impl < keys[j].Impl
	})
	return keys
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

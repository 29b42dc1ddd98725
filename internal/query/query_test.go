package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

func sampleSnapshot() snapshot.Snapshot {
	s := snapshot.Empty()
	s.Config = []snapshot.NormalizedSpec{
		{Name: "auth", Prefix: "auth"},
		{Name: "billing", Prefix: "bill"},
	}
	key := snapshot.ImplKey{Spec: "auth", Impl: "main"}
	s.ForwardByImpl[key] = []snapshot.RuleWithRefs{
		{
			Definition: snapshot.Definition{ID: ruleid.RuleID{Base: "login", Version: 1}},
			Impl:       []snapshot.Reference{{Path: "src/a.go"}},
		},
		{
			Definition: snapshot.Definition{ID: ruleid.RuleID{Base: "logout", Version: 1}},
		},
	}
	s.ReverseByFile["src/a.go"] = snapshot.FileEntry{Path: "src/a.go", Total: 2, Covered: 1}
	s.WorkspaceDiagnostics["src/a.go"] = []snapshot.Diagnostic{
		{Kind: snapshot.DiagStale, Spec: "auth", Path: "src/a.go", Line: 5},
		{Kind: snapshot.DiagOrphaned, Spec: "billing", Path: "src/a.go", Line: 9},
	}
	return s
}

func TestStatus(t *testing.T) {
	s := sampleSnapshot()
	got := Status(s)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Total)
	assert.Equal(t, 1, got[0].Covered)
	assert.Equal(t, 0, got[0].Verified)
}

func TestUncovered(t *testing.T) {
	s := sampleSnapshot()
	got := Uncovered(s, Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, "logout", got[0].Definition.ID.Base)
}

func TestUntested(t *testing.T) {
	s := sampleSnapshot()
	got := Untested(s, Filter{})
	assert.Len(t, got, 2)
}

func TestStale_ScopedBySpec(t *testing.T) {
	s := sampleSnapshot()
	got := Stale(s, Filter{Spec: "auth"})
	require.Len(t, got, 1)
	assert.Equal(t, "auth", got[0].Spec)
}

func TestValidate_ScopedBySpecExcludesOtherSpec(t *testing.T) {
	s := sampleSnapshot()
	got := Validate(s, "auth")
	require.Len(t, got, 1)
	assert.Equal(t, snapshot.DiagStale, got[0].Kind)
}

func TestRule_FindsDefinedRule(t *testing.T) {
	s := sampleSnapshot()
	detail, ok := Rule(s, ruleid.RuleID{Base: "login", Version: 1})
	require.True(t, ok)
	assert.Len(t, detail.Impl, 1)
}

func TestRule_MissingReturnsFalse(t *testing.T) {
	s := sampleSnapshot()
	_, ok := Rule(s, ruleid.RuleID{Base: "nope", Version: 1})
	assert.False(t, ok)
}

func TestUnmapped_OnlyListsPartiallyCoveredFiles(t *testing.T) {
	s := sampleSnapshot()
	got := Unmapped(s, "")
	require.Len(t, got, 1)
	assert.Equal(t, "src/a.go", got[0].Path)
}

package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/index"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
	"github.com/tracey-dev/tracey/internal/specloader"
)

func TestComputeImplDiagnostics_OrphanedAndStale(t *testing.T) {
	manifest := specloader.Manifest{
		SpecName: "auth",
		Prefix:   "auth",
		Definitions: []snapshot.Definition{
			{ID: ruleid.RuleID{Base: "login", Version: 2}},
		},
	}
	refs := []snapshot.Reference{
		{ID: ruleid.RuleID{Base: "login", Version: 1}, Path: "src/a.go", Line: 10},
		{ID: ruleid.RuleID{Base: "missing", Version: 1}, Path: "src/b.go", Line: 20},
	}

	diags := ComputeImplDiagnostics("auth", manifest, refs)

	var kinds []snapshot.DiagnosticKind
	for _, d := range diags {
		kinds = append(kinds, d.Kind)
		assert.Equal(t, "auth", d.Spec)
	}
	assert.Contains(t, kinds, snapshot.DiagStale)
	assert.Contains(t, kinds, snapshot.DiagOrphaned)
}

func TestCycleDiagnostics_DetectsCycle(t *testing.T) {
	manifest := specloader.Manifest{
		SpecName: "auth",
		Prefix:   "auth",
		Definitions: []snapshot.Definition{
			{ID: ruleid.RuleID{Base: "a", Version: 1}, Body: "auth[depends b]"},
			{ID: ruleid.RuleID{Base: "b", Version: 1}, Body: "auth[depends a]"},
		},
	}

	diags := CycleDiagnostics("auth", manifest)
	require.NotEmpty(t, diags)
	assert.Equal(t, snapshot.DiagCycle, diags[0].Kind)
}

func TestCycleDiagnostics_NoCycleWhenAcyclic(t *testing.T) {
	manifest := specloader.Manifest{
		SpecName: "auth",
		Prefix:   "auth",
		Definitions: []snapshot.Definition{
			{ID: ruleid.RuleID{Base: "a", Version: 1}, Body: "auth[depends b]"},
			{ID: ruleid.RuleID{Base: "b", Version: 1}, Body: ""},
		},
	}

	diags := CycleDiagnostics("auth", manifest)
	assert.Empty(t, diags)
}

func TestComputeUnknownPrefixes(t *testing.T) {
	files := []index.SourceFile{
		{Path: "src/a.go", Content: []byte("// other[impl x]\n"), Ext: ".go"},
	}
	diags, err := ComputeUnknownPrefixes(files, map[string]bool{"auth": true})
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, snapshot.DiagUnknownPrefix, diags[0].Kind)
}

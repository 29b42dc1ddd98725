package lspops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/position"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

func buildSnapshot() snapshot.Snapshot {
	s := snapshot.Empty()
	defSpan := position.Span{Start: 0, End: 20}
	refSpan := position.Span{Start: 0, End: 15}

	key := snapshot.ImplKey{Spec: "auth", Impl: "main"}
	s.ForwardByImpl[key] = []snapshot.RuleWithRefs{
		{
			Definition: snapshot.Definition{
				ID:   ruleid.RuleID{Base: "login", Version: 1},
				Path: "docs/auth.md",
				Span: defSpan,
				Line: 3,
				Body: "Users must log in with a password.",
			},
			Impl: []snapshot.Reference{
				{Verb: ruleid.VerbImpl, ID: ruleid.RuleID{Base: "login", Version: 1}, Path: "src/a.go", Span: refSpan, Line: 10},
			},
		},
	}
	s.SourceReqsByFile["src/a.go"] = s.ForwardByImpl[key][0].Impl
	return s
}

func TestHover_FindsDefinitionBody(t *testing.T) {
	s := buildSnapshot()
	res := Hover(s, "docs/auth.md", 5)
	require.True(t, res.Found)
	assert.Equal(t, "login", res.RuleID)
	assert.Contains(t, res.Body, "log in")
}

func TestDefinition_ResolvesReferenceToDefineLocation(t *testing.T) {
	s := buildSnapshot()
	loc, ok := Definition(s, "src/a.go", 5)
	require.True(t, ok)
	assert.Equal(t, "docs/auth.md", loc.Path)
	assert.Equal(t, 3, loc.Line)
}

func TestImplementations_FromDefine(t *testing.T) {
	s := buildSnapshot()
	refs := Implementations(s, "docs/auth.md", 5)
	require.Len(t, refs, 1)
	assert.Equal(t, "src/a.go", refs[0].Path)
}

func TestReferences_IncludesDefineAndImpl(t *testing.T) {
	s := buildSnapshot()
	refs := References(s, "src/a.go", 5)
	require.Len(t, refs, 2)
}

func TestCompletion_OffersVerbsFirst(t *testing.T) {
	s := buildSnapshot()
	items := Completion(s, "")
	require.NotEmpty(t, items)
	assert.Equal(t, "Define", items[0].Label)
}

func TestCompletion_OffersRuleIDsAfterVerb(t *testing.T) {
	s := buildSnapshot()
	items := Completion(s, "Impl lo")
	require.Len(t, items, 1)
	assert.Equal(t, "login", items[0].Label)
}

func TestRename_RewritesBaseEverywhere(t *testing.T) {
	s := buildSnapshot()
	edits := Rename(s, "docs/auth.md", 5, "signin")
	require.Len(t, edits, 2)
	for _, e := range edits {
		assert.Equal(t, "signin", e.NewText)
	}
}

func TestCodeLenses_ReportsReferenceCounts(t *testing.T) {
	s := buildSnapshot()
	lenses := CodeLenses(s, "docs/auth.md")
	require.Len(t, lenses, 1)
	assert.Contains(t, lenses[0].Title, "1 impl")
}

// TestSemanticTokens_SplitsMarkerIntoPrefixVerbRuleID exercises
// "r[impl auth.login]" (a reference, with an explicit verb) and
// "r[auth.login]" (a definition, verb-less) and checks that each field of
// the marker gets its own token span rather than one span per marker.
func TestSemanticTokens_SplitsMarkerIntoPrefixVerbRuleID(t *testing.T) {
	s := snapshot.Empty()
	s.Config = []snapshot.NormalizedSpec{{Name: "auth", Prefix: "r"}}

	refSpan := position.Span{Start: 0, End: 18} // "r[impl auth.login]"
	s.SourceReqsByFile["src/a.go"] = []snapshot.Reference{
		{Prefix: "r", Verb: ruleid.VerbImpl, ID: ruleid.RuleID{Base: "auth.login", Version: 1}, Path: "src/a.go", Span: refSpan},
	}

	defSpan := position.Span{Start: 50, End: 63} // "r[auth.login]"
	s.ForwardByImpl[snapshot.ImplKey{Spec: "auth", Impl: "main"}] = []snapshot.RuleWithRefs{
		{Definition: snapshot.Definition{ID: ruleid.RuleID{Base: "auth.login", Version: 1}, Spec: "auth", Path: "docs/auth.md", Span: defSpan}},
	}

	refTokens := SemanticTokens(s, "src/a.go")
	require.Len(t, refTokens, 3)
	assert.Equal(t, SemanticToken{Span: position.Span{Start: 0, End: 1}, Kind: TokenPrefix}, refTokens[0])
	assert.Equal(t, SemanticToken{Span: position.Span{Start: 2, End: 6}, Kind: TokenVerb}, refTokens[1])
	assert.Equal(t, SemanticToken{Span: position.Span{Start: 7, End: 17}, Kind: TokenRuleID}, refTokens[2])

	defTokens := SemanticTokens(s, "docs/auth.md")
	require.Len(t, defTokens, 2)
	assert.Equal(t, SemanticToken{Span: position.Span{Start: 50, End: 51}, Kind: TokenPrefix}, defTokens[0])
	assert.Equal(t, SemanticToken{Span: position.Span{Start: 52, End: 62}, Kind: TokenRuleID}, defTokens[1])
}

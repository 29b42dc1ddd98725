package codeunit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/position"
)

func TestOutline_Enclosing_PicksInnermost(t *testing.T) {
	outline := Outline{Units: []Unit{
		{Kind: KindType, Name: "Outer", Span: position.Span{Start: 0, End: 100}},
		{Kind: KindMethod, Name: "Outer.Inner", Span: position.Span{Start: 20, End: 40}},
	}}

	got := outline.Enclosing(25)
	require.NotNil(t, got)
	assert.Equal(t, "Outer.Inner", got.Name)
}

func TestOutline_Enclosing_OutsideAnyUnit(t *testing.T) {
	outline := Outline{Units: []Unit{
		{Kind: KindFunction, Name: "f", Span: position.Span{Start: 10, End: 20}},
	}}
	assert.Nil(t, outline.Enclosing(5))
}

func TestFallbackExtract_RustFunctionWithDocComment(t *testing.T) {
	src := []byte("/// Validates the login payload.\nfn login(user: &str) {\n    check(user);\n}\n")
	outline := fallbackExtract(src)

	if assert.Len(t, outline.Units, 1) {
		u := outline.Units[0]
		assert.Equal(t, KindFunction, u.Kind)
		assert.Equal(t, "login", u.Name)
		assert.Contains(t, u.DocComment, "Validates the login payload.")
	}
}

func TestFallbackExtract_RubyClass(t *testing.T) {
	src := []byte("class Session\n  def start\n  end\nend\n")
	outline := fallbackExtract(src)
	require.GreaterOrEqual(t, len(outline.Units), 1)
	assert.Equal(t, KindType, outline.Units[0].Kind)
	assert.Equal(t, "Session", outline.Units[0].Name)
}

func TestFallbackExtract_BlankLineBreaksDocAttribution(t *testing.T) {
	src := []byte("// unrelated note\n\nfn handler() {\n}\n")
	outline := fallbackExtract(src)
	if assert.Len(t, outline.Units, 1) {
		assert.Empty(t, outline.Units[0].DocComment)
	}
}

func TestExtract_Go_SpanCoversLeadingDocComment(t *testing.T) {
	src := []byte("package auth\n\n// r[impl auth.login]\nfunc Login() {\n\tdoLogin()\n}\n")
	outline, err := Extract(".go", src)
	require.NoError(t, err)
	require.Len(t, outline.Units, 1)

	u := outline.Units[0]
	assert.Equal(t, "Login", u.Name)
	assert.Contains(t, u.DocComment, "r[impl auth.login]")

	markerOffset := bytesIndex(src, "r[impl auth.login]")
	require.GreaterOrEqual(t, markerOffset, position.Offset(0))
	assert.True(t, markerOffset >= u.Span.Start, "span should start at or before the doc comment")
	assert.NotNil(t, outline.Enclosing(markerOffset), "marker inside the doc comment should resolve to the unit")
}

func bytesIndex(content []byte, substr string) position.Offset {
	for i := 0; i+len(substr) <= len(content); i++ {
		if string(content[i:i+len(substr)]) == substr {
			return position.Offset(i)
		}
	}
	return -1
}

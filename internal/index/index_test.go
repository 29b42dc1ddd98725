package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/ruleid"
)

func TestScan_SourceCommentReference(t *testing.T) {
	content := []byte("package auth\n\n// r[impl auth.login]\nfunc Login() {\n\tdoLogin()\n}\n")
	result, err := Scan(SourceFile{Path: "auth.go", Content: content, Ext: ".go"}, "r")
	require.NoError(t, err)

	require.Len(t, result.References, 1)
	assert.Equal(t, ruleid.VerbImpl, result.References[0].Verb)
	assert.Equal(t, "Login", result.References[0].Unit)
}

func TestScan_NonCommentMarkerIgnoredInSource(t *testing.T) {
	content := []byte("package auth\n\nfunc f() {\n\tx := \"r[impl auth.login]\"\n}\n")
	result, err := Scan(SourceFile{Path: "auth.go", Content: content, Ext: ".go"}, "r")
	require.NoError(t, err)
	assert.Empty(t, result.References)
}

func TestScan_PrefixFilterExcludesOtherSpecs(t *testing.T) {
	content := []byte("// r[impl auth.login] shm[impl other.thing]\n")
	result, err := Scan(SourceFile{Path: "f.go", Content: content, Ext: ".go"}, "r")
	require.NoError(t, err)
	require.Len(t, result.References, 1)
	assert.Equal(t, "r", result.References[0].Prefix)
}

func TestScan_TestFileFlagsNonVerifyReference(t *testing.T) {
	content := []byte("// r[impl auth.login]\nfunc TestLogin(t *T) {}\n")
	result, err := Scan(SourceFile{Path: "auth_test.go", Content: content, Ext: ".go", IsTest: true}, "r")
	require.NoError(t, err)
	require.Len(t, result.TestOnlyViolations, 1)
}

func TestScan_MarkdownInlineCodeStillScannedAsReference(t *testing.T) {
	content := []byte("See `r[impl auth.login]` for details.\n")
	result, err := Scan(SourceFile{Path: "notes.md", Content: content, IsMarkdown: true}, "r")
	require.NoError(t, err)
	require.Len(t, result.References, 1)
}

func TestScan_MarkdownFencedBlockNeverScanned(t *testing.T) {
	content := []byte("```\nr[impl auth.login]\n```\n")
	result, err := Scan(SourceFile{Path: "notes.md", Content: content, IsMarkdown: true}, "r")
	require.NoError(t, err)
	assert.Empty(t, result.References)
}

func TestScan_IgnoreNextLinePragmaExcludesSourceReference(t *testing.T) {
	content := []byte("package auth\n\n// @tracey:ignore-next-line\n// r[impl auth.login]\nfunc Login() {}\n")
	result, err := Scan(SourceFile{Path: "auth.go", Content: content, Ext: ".go"}, "r")
	require.NoError(t, err)
	assert.Empty(t, result.References)
}

func TestScan_IgnoreRegionExcludesMarkdownReference(t *testing.T) {
	content := []byte("<!-- @tracey:ignore-start -->\nSee `r[impl auth.login]` for details.\n<!-- @tracey:ignore-end -->\n")
	result, err := Scan(SourceFile{Path: "notes.md", Content: content, IsMarkdown: true}, "r")
	require.NoError(t, err)
	assert.Empty(t, result.References)
}

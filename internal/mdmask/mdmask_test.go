package mdmask

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_FencedCodeBlockIsMasked(t *testing.T) {
	content := []byte("before\n```\nr[impl auth.login]\n```\nafter r[impl auth.logout]\n")
	mask := Build(content)

	fencedIdx := indexOf(content, "r[impl auth.login]")
	plainIdx := indexOf(content, "r[impl auth.logout]")

	assert.True(t, mask.IsCode(fencedIdx))
	assert.False(t, mask.IsCode(plainIdx))
}

func TestBuild_InlineCodeSpanIsMasked(t *testing.T) {
	content := []byte("Use `r[impl auth.login]` in code, or r[impl auth.logout] as prose.\n")
	mask := Build(content)

	inlineIdx := indexOf(content, "r[impl auth.login]")
	proseIdx := indexOf(content, "r[impl auth.logout]")

	assert.True(t, mask.IsCode(inlineIdx))
	assert.False(t, mask.IsCode(proseIdx))
}

func TestBuild_BlockquoteIsNotCode(t *testing.T) {
	content := []byte("> r[auth.login]\n")
	mask := Build(content)

	idx := indexOf(content, "r[auth.login]")
	assert.False(t, mask.IsCode(idx))
}

func TestBuild_UniformIndentDoesNotBecomeCodeBlock(t *testing.T) {
	content := []byte("  r[impl auth.login]\n  r[impl auth.logout]\n")
	mask := Build(content)

	idx := indexOf(content, "r[impl auth.login]")
	assert.False(t, mask.IsCode(idx))
}

func TestBuild_DistinguishesBlockFromInlineSpan(t *testing.T) {
	content := []byte("```\nr[impl auth.block]\n```\n\nUse `r[impl auth.inline]` here.\n")
	mask := Build(content)

	blockIdx := indexOf(content, "r[impl auth.block]")
	inlineIdx := indexOf(content, "r[impl auth.inline]")

	assert.True(t, mask.IsFencedOrIndentedBlock(blockIdx))
	assert.False(t, mask.IsInlineCodeSpan(blockIdx))

	assert.True(t, mask.IsInlineCodeSpan(inlineIdx))
	assert.False(t, mask.IsFencedOrIndentedBlock(inlineIdx))
}

func indexOf(content []byte, needle string) int {
	for i := 0; i+len(needle) <= len(content); i++ {
		if string(content[i:i+len(needle)]) == needle {
			return i
		}
	}
	return -1
}

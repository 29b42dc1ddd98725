package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineStarts_LineNumberForOffset(t *testing.T) {
	starts := NewLineStarts([]byte("a\nbc\ndef"))

	tests := []struct {
		name   string
		offset Offset
		want   int
	}{
		{"first line start", 0, 1},
		{"second line start", 2, 2},
		{"third line start", 5, 3},
		{"mid second line", 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, starts.Line(tt.offset))
		})
	}
}

func TestSpan_FromInclusive_UsesInclusiveEndIndices(t *testing.T) {
	span := FromInclusive(10, 5, 9)
	assert.Equal(t, Offset(15), span.Start)
	assert.Equal(t, Offset(20), span.End)
	assert.Equal(t, 5, span.Len())
}

func TestSpan_FromInclusive_PanicsOnInvertedRange(t *testing.T) {
	require.Panics(t, func() {
		FromInclusive(0, 9, 5)
	})
}

func TestLineStarts_Position(t *testing.T) {
	starts := NewLineStarts([]byte("hello\nworld\n"))
	pos := starts.Position(7)
	assert.Equal(t, Position{Line: 2, Column: 2}, pos)
}

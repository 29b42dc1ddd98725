package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProgressBar_TracksGivenTotal(t *testing.T) {
	bar := NewProgressBar(10, "indexing auth/go")
	assert.Equal(t, int64(10), bar.GetMax64())
}

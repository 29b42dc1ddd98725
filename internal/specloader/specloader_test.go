package specloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/ruleid"
)

func TestLoad_ExplicitDefineAndBlockquoteDefine(t *testing.T) {
	content := []byte("# Auth\n\nr[define auth.login]\nLogin body text.\n\n> r[auth.logout]\nLogout body text.\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)

	assert.Equal(t, "r", manifest.Prefix)
	require.Len(t, manifest.Definitions, 2)
	assert.Equal(t, "auth.login", manifest.Definitions[0].ID.Base)
	assert.Contains(t, manifest.Definitions[0].Body, "Login body text.")
	assert.Equal(t, "auth.logout", manifest.Definitions[1].ID.Base)
	assert.Contains(t, manifest.Definitions[1].Body, "Logout body text.")
}

func TestLoad_VersionBumpRetainsPreviousBody(t *testing.T) {
	content := []byte("r[define auth.login]\nOriginal body.\n\nr[define auth.login+2]\nRevised body.\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)

	require.Len(t, manifest.Definitions, 1)
	def := manifest.Definitions[0]
	assert.Equal(t, 2, def.ID.Version)
	assert.Contains(t, def.Body, "Revised body.")
	assert.Contains(t, def.Previous, "Original body.")
}

func TestLoad_DuplicateExactVersionIsFlagged(t *testing.T) {
	content := []byte("r[define auth.login]\nFirst.\n\nr[define auth.login]\nSecond.\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)

	require.Len(t, manifest.Definitions, 1)
	require.Len(t, manifest.Duplicates, 1)
	assert.Equal(t, ruleid.New("auth.login", 1), manifest.Duplicates[0].ID)
}

func TestLoad_NoDefinesIsError(t *testing.T) {
	content := []byte("r[impl auth.login]\n")
	_, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	assert.Error(t, err)
}

func TestLoad_MultiplePrefixesIsError(t *testing.T) {
	content := []byte("r[define auth.login]\nBody.\n\nshm[define auth.logout]\nBody.\n")
	_, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	assert.Error(t, err)
}

func TestLoad_FencedCodeMarkerNeverCountsAsDefine(t *testing.T) {
	content := []byte("r[define auth.login]\nBody.\n\n```\nr[define auth.fake]\n```\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)
	require.Len(t, manifest.Definitions, 1)
	assert.Equal(t, "auth.login", manifest.Definitions[0].ID.Base)
}

func TestLoad_IgnoreNextLinePragmaSuppressesDefine(t *testing.T) {
	content := []byte("r[define auth.login]\nBody.\n\n<!-- @tracey:ignore-next-line -->\nr[define auth.fake]\nFake body.\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)
	require.Len(t, manifest.Definitions, 1)
	assert.Equal(t, "auth.login", manifest.Definitions[0].ID.Base)
}

func TestLoad_IgnoreRegionSuppressesDefine(t *testing.T) {
	content := []byte("r[define auth.login]\nBody.\n\n<!-- @tracey:ignore-start -->\nr[define auth.fake]\nFake body.\n<!-- @tracey:ignore-end -->\n")
	manifest, err := Load("auth", []File{{Path: "auth.md", Content: content}})
	require.NoError(t, err)
	require.Len(t, manifest.Definitions, 1)
	assert.Equal(t, "auth.login", manifest.Definitions[0].ID.Base)
}

package ipc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointPath_DeterministicForSameRoot(t *testing.T) {
	a, err := EndpointPath("/tmp/project-a")
	require.NoError(t, err)
	b, err := EndpointPath("/tmp/project-a")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEndpointPath_DiffersForDifferentRoots(t *testing.T) {
	a, err := EndpointPath("/tmp/project-a")
	require.NoError(t, err)
	b, err := EndpointPath("/tmp/project-b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPIDFilePath_SitsNextToEndpoint(t *testing.T) {
	endpoint, err := EndpointPath("/tmp/project-a")
	require.NoError(t, err)
	pid, err := PIDFilePath("/tmp/project-a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(endpoint), filepath.Dir(pid))
	assert.Equal(t, "daemon.sock", filepath.Base(endpoint))
	assert.Equal(t, "daemon.pid", filepath.Base(pid))
}

package bump

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/config"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Run(), "git %v", args)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	runGit(t, root, "init")
	runGit(t, root, "config", "user.email", "test@example.com")
	runGit(t, root, "config", "user.name", "Test User")
	return root
}

func testConfig() *config.Config {
	return &config.Config{Specs: []config.SpecConfig{
		{Name: "auth", Include: []string{"docs/*.md"}},
	}}
}

func TestDetect_FlagsBodyChangeWithoutVersionBump(t *testing.T) {
	root := initRepo(t)
	specPath := filepath.Join(root, "docs", "auth.md")
	writeFile(t, specPath, "r[define auth.login]\nOriginal body.\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	writeFile(t, specPath, "r[define auth.login]\nRevised body, no bump.\n")
	runGit(t, root, "add", ".")

	changed, err := Detect(root, testConfig())
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "auth.login", changed[0].ID.Base)
}

func TestDetect_NoFlagWhenVersionBumped(t *testing.T) {
	root := initRepo(t)
	specPath := filepath.Join(root, "docs", "auth.md")
	writeFile(t, specPath, "r[define auth.login]\nOriginal body.\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	writeFile(t, specPath, "r[define auth.login+2]\nRevised body.\n")
	runGit(t, root, "add", ".")

	changed, err := Detect(root, testConfig())
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestDetect_NoFlagWhenBodyUnchanged(t *testing.T) {
	root := initRepo(t)
	specPath := filepath.Join(root, "docs", "auth.md")
	writeFile(t, specPath, "r[define auth.login]\nStable body.\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")
	runGit(t, root, "add", ".")

	changed, err := Detect(root, testConfig())
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestPreCommit_FailsOnUnbumpedChange(t *testing.T) {
	root := initRepo(t)
	specPath := filepath.Join(root, "docs", "auth.md")
	writeFile(t, specPath, "r[define auth.login]\nOriginal body.\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	writeFile(t, specPath, "r[define auth.login]\nRevised body.\n")
	runGit(t, root, "add", ".")

	ok, changed, err := PreCommit(root, testConfig())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, changed, 1)
}

func TestBump_RewritesMarkerAndRestages(t *testing.T) {
	root := initRepo(t)
	specPath := filepath.Join(root, "docs", "auth.md")
	writeFile(t, specPath, "r[define auth.login]\nOriginal body.\n")
	runGit(t, root, "add", ".")
	runGit(t, root, "commit", "-m", "initial")

	writeFile(t, specPath, "r[define auth.login]\nRevised body.\n")
	runGit(t, root, "add", ".")

	bumped, err := Bump(root, testConfig())
	require.NoError(t, err)
	require.Len(t, bumped, 1)
	assert.Equal(t, "auth.login", bumped[0].ID.Base)

	on, err := os.ReadFile(specPath)
	require.NoError(t, err)
	assert.Contains(t, string(on), "r[define auth.login+2]")

	staged, err := gitShow(root, "", "docs/auth.md")
	require.NoError(t, err)
	assert.Contains(t, string(staged), "auth.login+2")
}

func TestRewriteVersion_InsertsWhenAbsent(t *testing.T) {
	out, ok := rewriteVersion("r[define auth.login]", "auth.login", 2)
	require.True(t, ok)
	assert.Equal(t, "r[define auth.login+2]", out)
}

func TestRewriteVersion_ReplacesExisting(t *testing.T) {
	out, ok := rewriteVersion("r[define auth.login+2]", "auth.login", 3)
	require.True(t, ok)
	assert.Equal(t, "r[define auth.login+3]", out)
}

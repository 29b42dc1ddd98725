package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracey-dev/tracey/internal/snapshot"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".config", "tracey"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "auth.md"),
		[]byte("# Auth\n\nr[define auth.login]\nUsers authenticate with a password.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "login.go"),
		[]byte("package auth\n\n// r[impl auth.login]\nfunc Login() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".config", "tracey", "config.styx"), []byte(`
specs {
    spec "auth" {
        include "docs/*.md"
        impls {
            impl "go" {
                include "src/*.go"
            }
        }
    }
}
`), 0o644))

	return root
}

func TestNew_WithProgressReportsDuringInitialBuildOnly(t *testing.T) {
	root := writeProject(t)

	var calls []string
	eng, err := New(root, ConfigPath(root), WithProgress(func(phase string, current, total int) {
		calls = append(calls, phase)
		require.LessOrEqual(t, current, total)
	}))
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	require.Equal(t, "auth/go", calls[0])

	require.Nil(t, eng.progress)
}

func TestContent_PrefersVFSOverlayOverDisk(t *testing.T) {
	root := writeProject(t)
	eng, err := New(root, ConfigPath(root))
	require.NoError(t, err)

	onDisk, ok := eng.Content("src/login.go")
	require.True(t, ok)
	require.Contains(t, string(onDisk), "func Login")

	eng.VFSOpen("src/login.go", []byte("package auth\n"))
	overlaid, ok := eng.Content("src/login.go")
	require.True(t, ok)
	require.Equal(t, "package auth\n", string(overlaid))

	_, ok = eng.Content("src/missing.go")
	require.False(t, ok)
}

func TestRebuild_ReportsUnknownPrefixDiagnostic(t *testing.T) {
	root := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "payments.go"),
		[]byte("package payments\n\n// billing[impl payments.charge]\nfunc Charge() {}\n"), 0o644))

	eng, err := New(root, ConfigPath(root))
	require.NoError(t, err)

	diags := eng.Data().WorkspaceDiagnostics["src/payments.go"]
	require.NotEmpty(t, diags)

	found := false
	for _, d := range diags {
		if d.Kind == snapshot.DiagUnknownPrefix {
			found = true
			require.Contains(t, d.Message, "billing")
		}
	}
	require.True(t, found, "expected an unknown-prefix diagnostic for billing[impl payments.charge]")
}

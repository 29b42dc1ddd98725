package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestCollect_SourceRespectsExtensionWhitelist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "notes.txt", "irrelevant\n")
	writeFile(t, root, "lib/util.py", "x = 1\n")

	w, err := New(root)
	require.NoError(t, err)

	files, err := w.Collect(Options{Kind: KindSource})
	require.NoError(t, err)
	require.Equal(t, []string{"lib/util.py", "main.go"}, files)
}

func TestCollect_SpecKindOnlyMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "spec.md", "# spec\n")
	writeFile(t, root, "main.go", "package main\n")

	w, err := New(root)
	require.NoError(t, err)

	files, err := w.Collect(Options{Kind: KindSpec})
	require.NoError(t, err)
	require.Equal(t, []string{"spec.md"}, files)
}

func TestCollect_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "vendor/\n*.gen.go\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "types.gen.go", "package main\n")

	w, err := New(root)
	require.NoError(t, err)

	files, err := w.Collect(Options{Kind: KindSource})
	require.NoError(t, err)
	require.Equal(t, []string{"main.go"}, files)
}

func TestCollect_IncludeExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "internal/a.go", "package internal\n")
	writeFile(t, root, "internal/a_test.go", "package internal\n")
	writeFile(t, root, "cmd/main.go", "package main\n")

	w, err := New(root)
	require.NoError(t, err)

	files, err := w.Collect(Options{
		Kind:    KindSource,
		Include: []string{"internal/**"},
		Exclude: []string{"**/*_test.go"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"internal/a.go"}, files)
}

func TestCollect_SkipsGitDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, root, "main.go", "package main\n")

	w, err := New(root)
	require.NoError(t, err)

	files, err := w.Collect(Options{Kind: KindSource})
	require.NoError(t, err)
	require.Equal(t, []string{"main.go"}, files)
}

package watcher

import "testing"

func TestLiteralPrefix(t *testing.T) {
	cases := map[string]string{
		"src/auth/**/*.go":  "src/auth",
		"docs/**/*.md":      "docs",
		"*.go":              ".",
		"README.md":         ".",
		"a/b/c/*.py":        "a/b/c",
		"a/{b,c}/*.go":      "a",
	}
	for pattern, want := range cases {
		if got := LiteralPrefix(pattern); got != want {
			t.Errorf("LiteralPrefix(%q) = %q, want %q", pattern, got, want)
		}
	}
}

func TestIsNoise(t *testing.T) {
	noisy := []string{"foo.go.swp", "foo.go~", "#foo.go#", "foo.go.tmp", ".#foo.go"}
	for _, n := range noisy {
		if !isNoise(n) {
			t.Errorf("isNoise(%q) = false, want true", n)
		}
	}
	if isNoise("main.go") {
		t.Errorf("isNoise(main.go) = true, want false")
	}
}

type fakeRebuilder struct {
	calls [][]string
}

func (f *fakeRebuilder) ScheduleRebuildWithChanges(changed []string) {
	f.calls = append(f.calls, changed)
}

func TestNew_DefaultsRootsToProjectRoot(t *testing.T) {
	w := New("/tmp/project", nil, &fakeRebuilder{})
	if len(w.roots) != 1 || w.roots[0] != "." {
		t.Errorf("expected default root [.], got %v", w.roots)
	}
}

func TestNewRoots_ReturnsOnlyAddedEntries(t *testing.T) {
	got := newRoots([]string{"docs", "src"}, []string{"src", "crates"})
	if len(got) != 1 || got[0] != "crates" {
		t.Errorf("newRoots() = %v, want [crates]", got)
	}
}

func TestReconfigure_UpdatesRootsWithoutLiveWatcher(t *testing.T) {
	w := New("/tmp/project", []string{"src"}, &fakeRebuilder{})
	w.Reconfigure([]string{"src", "crates"})
	if len(w.roots) != 2 || w.roots[1] != "crates" {
		t.Errorf("roots = %v, want [src crates]", w.roots)
	}
}

func TestReconfigure_EmptyRootsDefaultsToProjectRoot(t *testing.T) {
	w := New("/tmp/project", []string{"src"}, &fakeRebuilder{})
	w.Reconfigure(nil)
	if len(w.roots) != 1 || w.roots[0] != "." {
		t.Errorf("roots = %v, want [.]", w.roots)
	}
}

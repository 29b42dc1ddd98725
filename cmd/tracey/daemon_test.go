package main

import (
	"sort"
	"testing"

	"github.com/tracey-dev/tracey/internal/config"
)

func TestWatchRoots_DedupesAndCoversSpecsAndImpls(t *testing.T) {
	cfg := &config.Config{
		Specs: []config.SpecConfig{
			{
				Name:    "api",
				Include: []string{"docs/api/**/*.md"},
				Impls: []config.Impl{
					{
						Name:        "go",
						Include:     []string{"internal/**/*.go"},
						TestInclude: []string{"internal/**/*_test.go"},
					},
				},
			},
			{
				Name:    "web",
				Include: []string{"docs/web/**/*.md"},
				Impls: []config.Impl{
					{Name: "ts", Include: []string{"internal/**/*.ts"}},
				},
			},
		},
	}

	got := watchRoots(cfg)
	sort.Strings(got)

	want := []string{"docs/api", "docs/web", "internal"}
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("watchRoots() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("watchRoots() = %v, want %v", got, want)
		}
	}
}

func TestWatchRoots_NilConfig(t *testing.T) {
	if got := watchRoots(nil); got != nil {
		t.Fatalf("watchRoots(nil) = %v, want nil", got)
	}
}

func TestConfigWatchRoots_RelativeToRoot(t *testing.T) {
	got := configWatchRoots("/home/dev/project", "/home/dev/project/.config/tracey/config.styx")
	want := []string{".config/tracey"}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("configWatchRoots() = %v, want %v", got, want)
	}
}

func TestConfigWatchRoots_OutsideRootIsOmitted(t *testing.T) {
	got := configWatchRoots("/home/dev/project", "/etc/tracey/config.styx")
	if got != nil {
		t.Fatalf("configWatchRoots() = %v, want nil for a config path outside root", got)
	}
}

package main

import (
	"path/filepath"
	"testing"
)

func TestResolveRoot_Default(t *testing.T) {
	root, rest, err := resolveRoot([]string{"--json"})
	if err != nil {
		t.Fatalf("resolveRoot() error = %v", err)
	}
	cwd, _ := filepath.Abs(".")
	if root != filepath.Clean(cwd) {
		t.Fatalf("resolveRoot() = %q, want %q", root, cwd)
	}
	if len(rest) != 1 || rest[0] != "--json" {
		t.Fatalf("resolveRoot() rest = %v", rest)
	}
}

func TestResolveRoot_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	root, rest, err := resolveRoot([]string{dir, "--json"})
	if err != nil {
		t.Fatalf("resolveRoot() error = %v", err)
	}
	if root != filepath.Clean(dir) {
		t.Fatalf("resolveRoot() = %q, want %q", root, dir)
	}
	if len(rest) != 1 || rest[0] != "--json" {
		t.Fatalf("resolveRoot() rest = %v", rest)
	}
}

func TestResolvedConfigPath_ExplicitWins(t *testing.T) {
	dir := t.TempDir()
	got := resolvedConfigPath(dir, "explicit.styx")
	want, _ := filepath.Abs("explicit.styx")
	if got != want {
		t.Fatalf("resolvedConfigPath() = %q, want %q", got, want)
	}
}

func TestParseRuleIDArg(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantOK  bool
		wantVer int
	}{
		{"missing", "", false, 0},
		{"bare", "auth.login", true, 1},
		{"versioned", "auth.login+3", true, 3},
		{"invalid-version", "auth.login+x", true, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, ok := parseRuleIDArg(map[string]any{"id": c.id})
			if ok != c.wantOK {
				t.Fatalf("parseRuleIDArg(%q) ok = %v, want %v", c.id, ok, c.wantOK)
			}
			if ok && id.Version != c.wantVer {
				t.Fatalf("parseRuleIDArg(%q) version = %d, want %d", c.id, id.Version, c.wantVer)
			}
		})
	}
}

func TestFilterFromArgs(t *testing.T) {
	f := filterFromArgs(map[string]any{"spec": "api", "impl": "go", "prefix": "auth"})
	if f.Spec != "api" || f.Impl != "go" || f.Prefix != "auth" {
		t.Fatalf("filterFromArgs() = %+v", f)
	}
}

// Package walker implements tracey's source walker (spec.md C4): it yields
// the files eligible for spec or source scanning, honoring .gitignore,
// per-target include/exclude globs, and the supported-extension whitelist.
// Output is always sorted by path so downstream indexing is deterministic.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// SpecExtension is the single extension recognized for spec documents.
const SpecExtension = ".md"

// SourceExtensions is the whitelist of extensions walked as source files.
// The original implementation encodes this list in a helper that fell
// outside the retrieved reference slice (see DESIGN.md); this catalog
// covers the languages internal/codeunit knows how to extract structure
// from plus the broader set a multi-language repository is likely to mix
// in, so the walker does not silently starve the indexer.
var SourceExtensions = map[string]bool{
	".go": true, ".rs": true, ".py": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
	".java": true, ".kt": true, ".c": true, ".h": true,
	".cc": true, ".cpp": true, ".hpp": true, ".cs": true, ".rb": true,
}

// Walker scans a project root, applying .gitignore semantics on top of
// whatever per-target globs the caller supplies.
type Walker struct {
	root      string
	gitignore *gitignore.GitIgnore
}

// New builds a Walker rooted at root. A missing .gitignore is not an error;
// it is treated as an empty ignore set.
func New(root string) (*Walker, error) {
	root = filepath.Clean(root)
	gitignorePath := filepath.Join(root, ".gitignore")

	var matcher *gitignore.GitIgnore
	if _, err := os.Stat(gitignorePath); err == nil {
		matcher, err = gitignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			return nil, err
		}
	} else {
		matcher = gitignore.CompileIgnoreLines()
	}

	return &Walker{root: root, gitignore: matcher}, nil
}

// Kind selects which extension policy a Collect call applies.
type Kind int

const (
	// KindSpec walks Markdown files only.
	KindSpec Kind = iota
	// KindSource walks files matching SourceExtensions.
	KindSource
)

// Options parameterizes a single Collect call.
type Options struct {
	Kind    Kind
	Include []string // must match at least one, relative to root, '/'-separated
	Exclude []string // must match none
}

// Collect walks the tree rooted at w.root and returns the sorted list of
// relative, '/'-separated paths eligible under opts. Symbolic links are not
// followed: a symlinked directory is not descended into, and a symlink is
// judged by its own name like a regular file.
func (w *Walker) Collect(opts Options) ([]string, error) {
	var results []string

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries (C10/C7 §7 Source-scan failure)
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			base := d.Name()
			if base == ".git" {
				return filepath.SkipDir
			}
			if w.gitignore.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.gitignore.MatchesPath(rel) {
			return nil
		}
		if !w.extensionAllowed(opts.Kind, rel) {
			return nil
		}
		if !matchesAny(opts.Include, rel) {
			return nil
		}
		if matchesAny(opts.Exclude, rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func (w *Walker) extensionAllowed(kind Kind, rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	switch kind {
	case KindSpec:
		return ext == SpecExtension
	default:
		return SourceExtensions[ext]
	}
}

// matchesAny reports whether rel matches any of globs. An empty glob list is
// treated as "match everything" so callers can omit excludes freely; the
// include list has no such shortcut at the caller layer — spec.md requires
// includes to be explicit — but an empty include list here still matches
// everything since the decision to require at least one include glob is the
// config loader's responsibility (a SpecConfig/Impl with no include globs
// simply selects nothing useful, which is a config concern, not a walker
// concern).
func matchesAny(globs []string, rel string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

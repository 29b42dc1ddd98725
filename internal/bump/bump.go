// Package bump implements the version-bump workflow described in spec.md's
// end-to-end scenario 4 and the "bump"/"pre-commit" CLI commands: diffing a
// spec's staged (git index) rule bodies against HEAD and flagging, or
// rewriting, any Define marker whose body text changed without a matching
// version increment. It shells out to the git binary for revision content —
// none of the example pack carries a Go git-plumbing library, so this is the
// one place in the repository that talks to git directly rather than
// through a dependency.
package bump

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
	"github.com/tracey-dev/tracey/internal/specloader"
	"github.com/tracey-dev/tracey/internal/walker"
)

// Changed is one rule definition whose body differs between the staged
// revision and HEAD without an accompanying version bump.
type Changed struct {
	Spec string
	ID   ruleid.RuleID
	Path string
}

func (c Changed) String() string {
	return fmt.Sprintf("%s (spec %q, %s)", c.ID.String(), c.Spec, c.Path)
}

// Detect walks every configured spec's files, comparing the staged body of
// each rule definition against its HEAD body, and reports every rule whose
// text changed without a version bump. A spec file with no HEAD revision
// (new/untracked) contributes nothing, since there is nothing to diff yet.
func Detect(root string, cfg *config.Config) ([]Changed, error) {
	w, err := walker.New(root)
	if err != nil {
		return nil, err
	}

	var out []Changed
	for _, spec := range cfg.Specs {
		paths, err := w.Collect(walker.Options{Kind: walker.KindSpec, Include: spec.Include})
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			continue
		}

		staged, err := loadRevision(spec.Name, root, paths, stagedRevision)
		if err != nil {
			return nil, fmt.Errorf("spec %q (staged): %w", spec.Name, err)
		}
		head, err := loadRevision(spec.Name, root, paths, "HEAD")
		if err != nil {
			continue // no committed revision yet; nothing to diff against
		}

		headByBase := make(map[string]snapshot.Definition, len(head.Definitions))
		for _, d := range head.Definitions {
			headByBase[d.ID.Base] = d
		}

		for _, d := range staged.Definitions {
			prev, ok := headByBase[d.ID.Base]
			if !ok || prev.ID.Version != d.ID.Version {
				continue // newly introduced, or already bumped
			}
			if normalizeBody(prev.Body) != normalizeBody(d.Body) {
				out = append(out, Changed{Spec: spec.Name, ID: d.ID, Path: d.Path})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Spec != out[j].Spec {
			return out[i].Spec < out[j].Spec
		}
		return out[i].ID.Base < out[j].ID.Base
	})
	return out, nil
}

// PreCommit reports whether the workspace is clean of unbumped rule changes
// (true) or not (false, with the offending rules), for use as a git
// pre-commit hook that rejects the commit on false.
func PreCommit(root string, cfg *config.Config) (bool, []Changed, error) {
	changed, err := Detect(root, cfg)
	if err != nil {
		return false, nil, err
	}
	return len(changed) == 0, changed, nil
}

// Bump rewrites every unbumped rule's Define marker in its working-tree file
// to the next version, re-stages the file with `git add`, and returns the
// rules it bumped.
func Bump(root string, cfg *config.Config) ([]Changed, error) {
	changed, err := Detect(root, cfg)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}

	byPath := map[string][]Changed{}
	for _, c := range changed {
		byPath[c.Path] = append(byPath[c.Path], c)
	}

	for path, targets := range byPath {
		abs := filepath.Join(root, filepath.FromSlash(path))
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}

		// Re-parse the working-tree copy: Detect compared git-blob content,
		// whose byte offsets don't necessarily match what's on disk now.
		manifest, err := specloader.Load(targets[0].Spec, []specloader.File{{Path: path, Content: content}})
		if err != nil {
			return nil, err
		}
		byBase := make(map[string]snapshot.Definition, len(manifest.Definitions))
		for _, d := range manifest.Definitions {
			byBase[d.ID.Base] = d
		}

		var toBump []snapshot.Definition
		for _, c := range targets {
			if d, ok := byBase[c.ID.Base]; ok {
				toBump = append(toBump, d)
			}
		}
		// Rewrite back-to-front so earlier spans in the same file stay valid.
		sort.Slice(toBump, func(i, j int) bool { return toBump[i].Span.Start > toBump[j].Span.Start })

		for _, d := range toBump {
			raw := string(content[d.Span.Start:d.Span.End])
			rewritten, ok := rewriteVersion(raw, d.ID.Base, d.ID.Version+1)
			if !ok {
				continue
			}
			var buf bytes.Buffer
			buf.Write(content[:d.Span.Start])
			buf.WriteString(rewritten)
			buf.Write(content[d.Span.End:])
			content = buf.Bytes()
		}

		if err := os.WriteFile(abs, content, 0o644); err != nil {
			return nil, err
		}
		if err := gitAdd(root, path); err != nil {
			return nil, err
		}
	}

	return changed, nil
}

// rewriteVersion replaces the optional "+VERSION" suffix immediately
// following base inside a raw "PREFIX[VERB? BASE(+VERSION)?]" marker with
// "+newVersion", inserting it if absent. It returns ok=false if base cannot
// be located or the text between base and the closing bracket is not a
// version suffix (marker grammar violated — leave it untouched).
func rewriteVersion(markerText, base string, newVersion int) (string, bool) {
	idx := strings.LastIndex(markerText, base)
	if idx < 0 {
		return markerText, false
	}
	afterBase := idx + len(base)
	rest := markerText[afterBase:]
	closeIdx := strings.IndexByte(rest, ']')
	if closeIdx < 0 {
		return markerText, false
	}
	suffix := rest[:closeIdx]
	if suffix != "" && suffix[0] != '+' {
		return markerText, false
	}
	return markerText[:afterBase] + fmt.Sprintf("+%d", newVersion) + rest[closeIdx:], true
}

// normalizeBody trims surrounding whitespace so formatting-only edits (a
// trailing blank line, trailing spaces) don't trigger a spurious bump
// requirement.
func normalizeBody(body string) string {
	return strings.TrimSpace(body)
}

// stagedRevision is the git pseudo-revision naming "the index", i.e. what is
// currently staged for commit.
const stagedRevision = ""

// loadRevision loads every spec file at the given git revision ("" selects
// the staged/index content) and parses them into a Manifest. A path absent
// from that revision is simply skipped rather than failing the whole load,
// so a newly-added spec file doesn't break diffing the rest of the spec.
func loadRevision(specName, root string, paths []string, revision string) (specloader.Manifest, error) {
	var files []specloader.File
	for _, p := range paths {
		content, err := gitShow(root, revision, p)
		if err != nil {
			continue
		}
		files = append(files, specloader.File{Path: p, Content: content})
	}
	if len(files) == 0 {
		return specloader.Manifest{}, fmt.Errorf("no spec files found at revision %q", revisionLabel(revision))
	}
	return specloader.Load(specName, files)
}

func revisionLabel(revision string) string {
	if revision == "" {
		return "index"
	}
	return revision
}

// gitShow returns the content of path at revision ("" for the index, i.e.
// `git show :path`) within the repository rooted at root.
func gitShow(root, revision, path string) ([]byte, error) {
	spec := fmt.Sprintf(":%s", path)
	if revision != "" {
		spec = fmt.Sprintf("%s:%s", revision, path)
	}
	cmd := exec.Command("git", "show", spec)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// gitAdd stages path within the repository rooted at root.
func gitAdd(root, path string) error {
	cmd := exec.Command("git", "add", "--", path)
	cmd.Dir = root
	return cmd.Run()
}

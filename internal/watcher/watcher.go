// Package watcher drives an Engine rebuild from filesystem change events
// (C9): it watches the literal directory prefixes of a workspace's
// configured globs, debounces bursts of editor activity, filters out
// temp-file noise, and restarts itself after an fsnotify failure.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Rebuilder is the subset of Engine the watcher drives.
type Rebuilder interface {
	ScheduleRebuildWithChanges(changedPaths []string)
}

const (
	debounce      = 200 * time.Millisecond
	restartBackoff = 5 * time.Second
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".tracey": true, "bin": true,
}

// Watcher owns one fsnotify watcher over projectRoot's watched directories.
type Watcher struct {
	projectRoot string
	engine      Rebuilder
	stop        chan struct{}

	mu    sync.Mutex
	roots []string
	fw    *fsnotify.Watcher
}

// New builds a Watcher rooted at projectRoot. roots is the set of literal
// (non-glob) directory prefixes derived from the workspace's configured
// include patterns — e.g. "src/auth/**/*.go" contributes "src/auth".
// When roots is empty, projectRoot itself is watched.
func New(projectRoot string, roots []string, engine Rebuilder) *Watcher {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	return &Watcher{projectRoot: projectRoot, roots: roots, engine: engine, stop: make(chan struct{})}
}

// LiteralPrefix returns the longest directory prefix of pattern that
// contains no glob metacharacter, for use as a watch root. A pattern with
// no directory component at all yields ".".
func LiteralPrefix(pattern string) string {
	segments := strings.Split(filepath.ToSlash(pattern), "/")
	var kept []string
	brokeOnGlob := false
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?[{") {
			brokeOnGlob = true
			break
		}
		kept = append(kept, seg)
	}
	// A pattern with no glob segment at all is a concrete file path; its
	// last segment is the filename, not a directory, so it's dropped.
	if !brokeOnGlob && len(kept) > 0 {
		kept = kept[:len(kept)-1]
	}
	if len(kept) == 0 {
		return "."
	}
	return filepath.Join(kept...)
}

// Run watches the filesystem until Stop is called, restarting the
// underlying fsnotify watcher after any fatal setup error.
func (w *Watcher) Run() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		if err := w.runOnce(); err != nil {
			select {
			case <-w.stop:
				return
			case <-time.After(restartBackoff):
			}
		}
	}
}

// Stop ends the watch loop; Run returns once the current restart-backoff
// wait (if any) or event loop iteration observes it.
func (w *Watcher) Stop() {
	close(w.stop)
}

// Reconfigure re-derives the watched directory set: any root present in the
// new set but not the old one is added to the live fsnotify watcher
// immediately, with no restart, so a config edit that adds a new impl's
// include glob is watched starting with its very next rebuild (spec.md
// §4.9's "re-derive watched set on config change"). Roots dropped from the
// new set are left watched — fsnotify has no bulk "remove subtree" call,
// the watched set is advisory only (every change still triggers a full
// engine rescan), and over-watching a directory the config no longer names
// is harmless, unlike under-watching one it does.
func (w *Watcher) Reconfigure(roots []string) {
	if len(roots) == 0 {
		roots = []string{"."}
	}

	w.mu.Lock()
	added := newRoots(w.roots, roots)
	w.roots = roots
	fw := w.fw
	w.mu.Unlock()

	if fw == nil {
		return
	}
	for _, root := range added {
		w.addDirs(fw, filepath.Join(w.projectRoot, root))
	}
}

// newRoots returns the entries of next absent from prev.
func newRoots(prev, next []string) []string {
	have := make(map[string]bool, len(prev))
	for _, r := range prev {
		have[r] = true
	}
	var added []string
	for _, r := range next {
		if !have[r] {
			added = append(added, r)
		}
	}
	return added
}

func (w *Watcher) runOnce() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	w.mu.Lock()
	w.fw = fw
	roots := w.roots
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.fw = nil
		w.mu.Unlock()
	}()

	for _, root := range roots {
		w.addDirs(fw, filepath.Join(w.projectRoot, root))
	}

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time
	var pending []string

	for {
		select {
		case <-w.stop:
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isNoise(event.Name) {
				continue
			}
			pending = append(pending, event.Name)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(debounce)
			timerCh = debounceTimer.C
		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
		case <-timerCh:
			timerCh = nil
			changed := pending
			pending = nil
			w.engine.ScheduleRebuildWithChanges(changed)
		}
	}
}

func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil && os.IsPermission(err) {
			return filepath.SkipDir
		}
		return nil
	})
}

// isNoise reports whether name looks like an editor temp/swap file rather
// than a genuine content change (Vim ".swp"/"~", Emacs "#...#", and the
// common ".tmp" suffix editors use for atomic-save staging).
func isNoise(name string) bool {
	base := filepath.Base(name)
	switch {
	case strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasSuffix(base, "~"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, ".#"):
		return true
	default:
		return false
	}
}

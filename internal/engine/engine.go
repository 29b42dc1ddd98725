// Package engine implements the Engine (C8): the long-lived owner of the
// workspace's current Snapshot. It coalesces rebuild requests so at most
// one rebuild runs at a time, publishes a new Snapshot only when its
// content actually changed, and lets editor buffers (VFS overlays) shadow
// on-disk content during a rebuild.
package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/specloader"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// Engine owns the current Snapshot and the state needed to rebuild it.
type Engine struct {
	projectRoot string
	configPath  string

	mu         sync.Mutex
	rebuilding bool
	dirty      bool

	vfsMu sync.Mutex
	vfs   map[string][]byte

	snapMu  sync.RWMutex
	current snapshot.Snapshot

	// lastGoodManifest retains the last successfully loaded Manifest per
	// spec name, substituted in when a later rebuild's config parses the
	// spec but its Define markers fail prefix inference (spec.md §3: "that
	// spec's data from the previous good rebuild is retained").
	lastGoodManifest map[string]specloader.Manifest

	subMu       sync.Mutex
	subscribers []chan uint64

	// progress, when set via WithProgress, is invoked during the build this
	// Engine was constructed with as each spec/impl's file group is
	// collected. It is cleared once that build completes, so later
	// background rebuilds triggered by ScheduleRebuildWithChanges never
	// drive a caller's progress bar a second time.
	progress func(phase string, current, total int)
}

// Option customizes Engine construction.
type Option func(*Engine)

// WithProgress registers a callback fired during the initial build as each
// spec/impl's source files are walked, letting a caller attached to a
// terminal drive a progress bar. The callback is not retained past the
// initial build.
func WithProgress(fn func(phase string, current, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

func (e *Engine) reportProgress(phase string, current, total int) {
	if e.progress != nil {
		e.progress(phase, current, total)
	}
}

// New constructs an Engine rooted at projectRoot, reading its config from
// configPath, and performs an initial build. Construction always succeeds,
// even when the config file is absent or malformed — in that case the
// engine's snapshot carries an empty ConfigError-free default, or
// (on a genuine parse failure) the first build records ConfigError and
// otherwise empty data, per spec.md §4.8.
func New(projectRoot, configPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		projectRoot:      filepath.Clean(projectRoot),
		configPath:       configPath,
		vfs:              map[string][]byte{},
		lastGoodManifest: map[string]specloader.Manifest{},
		current:          snapshot.Empty(),
	}
	for _, opt := range opts {
		opt(e)
	}
	_ = e.Rebuild() // initial build is best-effort; errors are recorded in the snapshot itself
	e.progress = nil
	return e, nil
}

// Data returns the current snapshot. It never blocks on a rebuild.
func (e *Engine) Data() snapshot.Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.current
}

// ScheduleRebuildWithChanges coalesces a rebuild request: if a rebuild is
// already running, the engine is marked dirty and the in-flight rebuild's
// completion will trigger another pass; otherwise a new rebuild starts in
// the background. changedPaths is presently advisory only (tracey always
// performs a full rescan) and is accepted to match the engine's public
// contract for callers that want to log or coalesce on it themselves.
func (e *Engine) ScheduleRebuildWithChanges(changedPaths []string) {
	e.mu.Lock()
	if e.rebuilding {
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.rebuilding = true
	e.mu.Unlock()

	go e.rebuildLoop()
}

func (e *Engine) rebuildLoop() {
	for {
		_ = e.Rebuild()

		e.mu.Lock()
		if e.dirty {
			e.dirty = false
			e.mu.Unlock()
			continue
		}
		e.rebuilding = false
		e.mu.Unlock()
		return
	}
}

// Subscribe returns a lossy, single-slot channel of published versions: a
// send that would block instead drops the previously queued value and
// retries, so a slow subscriber only ever observes the latest version.
func (e *Engine) Subscribe() <-chan uint64 {
	ch := make(chan uint64, 1)
	e.subMu.Lock()
	e.subscribers = append(e.subscribers, ch)
	e.subMu.Unlock()
	return ch
}

func (e *Engine) publish(version uint64) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subscribers {
		select {
		case ch <- version:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- version:
			default:
			}
		}
	}
}

// VFSOpen installs an editor-buffer overlay for path, shadowing its
// on-disk content on the next rebuild.
func (e *Engine) VFSOpen(path string, content []byte) {
	e.setOverlay(path, content)
}

// VFSChange updates an existing overlay's content.
func (e *Engine) VFSChange(path string, content []byte) {
	e.setOverlay(path, content)
}

// VFSClose removes path's overlay; the next rebuild reads on-disk content.
func (e *Engine) VFSClose(path string) {
	e.vfsMu.Lock()
	delete(e.vfs, path)
	e.vfsMu.Unlock()
}

func (e *Engine) setOverlay(path string, content []byte) {
	e.vfsMu.Lock()
	e.vfs[path] = content
	e.vfsMu.Unlock()
}

func (e *Engine) overlay(path string) ([]byte, bool) {
	e.vfsMu.Lock()
	defer e.vfsMu.Unlock()
	c, ok := e.vfs[path]
	return c, ok
}

// Content returns path's current content as the scanner last saw it: the
// open editor overlay if one exists, otherwise the on-disk file relative to
// the project root. Callers translating an editor cursor to a byte offset
// must read through this rather than the filesystem directly, or an open,
// unsaved buffer's line layout will disagree with the snapshot's spans.
func (e *Engine) Content(path string) ([]byte, bool) {
	if c, ok := e.overlay(path); ok {
		return c, true
	}
	content, err := os.ReadFile(filepath.Join(e.projectRoot, filepath.FromSlash(path)))
	if err != nil {
		return nil, false
	}
	return content, true
}

// ConfigPath returns the absolute path to the workspace's config file,
// regardless of whether it currently exists.
func ConfigPath(projectRoot string) string {
	return config.Path(projectRoot)
}

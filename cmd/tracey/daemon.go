package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/schollz/progressbar/v3"

	"github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/engine"
	traceerrors "github.com/tracey-dev/tracey/internal/errors"
	"github.com/tracey-dev/tracey/internal/ipc"
	"github.com/tracey-dev/tracey/internal/ui"
	"github.com/tracey-dev/tracey/internal/watcher"
)

// runDaemon starts the long-lived engine, its filesystem watcher, and the
// IPC server other tracey commands (and editor integrations) talk to.
func runDaemon(args []string, configPath string, globals GlobalFlags) int {
	root, rest, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: tracey daemon [root] [-c config]\n\nRuns the engine and filesystem watcher until killed or idle for 10 minutes.\n")
	}
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	logPath, err := ipc.LogPath(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	defer logFile.Close()

	logLevel := slog.LevelInfo
	if globals.Verbose >= 2 {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if markerPath, mErr := ipc.ProjectRootMarkerPath(root); mErr == nil {
		_ = os.WriteFile(markerPath, []byte(root), 0o644)
	}

	effectiveConfigPath := resolvedConfigPath(root, configPath)
	reportBuildProgress, finishBuildProgress := buildProgressReporter()
	eng, err := engine.New(root, effectiveConfigPath, engine.WithProgress(reportBuildProgress))
	finishBuildProgress()
	if err != nil {
		traceerrors.FatalError(err, globals.JSON)
		return exitFail
	}
	logger.Info("engine.started", "root", root, "config", effectiveConfigPath)

	endpoint, err := ipc.EndpointPath(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	server := ipc.NewServer(eng, endpoint, 0)
	if err := server.Listen(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	if eventLogPath, elErr := ipc.EventLogPath(root); elErr == nil {
		if eventLog, elErr := ipc.OpenEventLog(eventLogPath); elErr == nil {
			defer eventLog.Close()
			server.SetEventLog(eventLog)
		} else {
			logger.Warn("eventlog.open_failed", "err", elErr)
		}
	}

	pidPath, err := ipc.PIDFilePath(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	if err := ipc.WritePIDFile(pidPath, os.Getpid()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	defer os.Remove(pidPath)

	cfg, _ := config.Load(effectiveConfigPath)
	roots := append(watchRoots(cfg), configWatchRoots(root, effectiveConfigPath)...)
	w := watcher.New(root, roots, eng)
	server.SetWatcherState("running")
	go w.Run()
	defer w.Stop()
	logger.Info("watcher.started", "roots", roots)

	versions := eng.Subscribe()
	go func() {
		for range versions {
			cfg, _ := config.Load(effectiveConfigPath)
			newRoots := append(watchRoots(cfg), configWatchRoots(root, effectiveConfigPath)...)
			w.Reconfigure(newRoots)
			logger.Info("watcher.reconfigured", "roots", newRoots)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("daemon.shutdown_signal", "signal", sig.String())
		server.Shutdown()
	}()

	if err := server.Serve(); err != nil {
		logger.Error("daemon.serve_error", "err", err)
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	logger.Info("daemon.stopped")
	return exitOK
}

// buildProgressReporter returns an engine.WithProgress callback that draws a
// bar over stderr for the daemon's initial workspace build when attached to
// a terminal, plus a finish func to close out whatever bar is still open.
// A new bar replaces the previous one each time the phase name changes,
// since the engine reports progress per spec/impl pair in sequence.
func buildProgressReporter() (report func(phase string, current, total int), finish func()) {
	if !ui.ProgressEnabled() {
		return func(string, int, int) {}, func() {}
	}

	var bar *progressbar.ProgressBar
	var phase string
	report = func(p string, current, total int) {
		if p != phase {
			if bar != nil {
				_ = bar.Finish()
			}
			phase = p
			bar = ui.NewProgressBar(total, "indexing "+p)
		}
		if bar != nil {
			_ = bar.Set(current)
		}
	}
	finish = func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return report, finish
}

// configWatchRoots adds the config file's own directory to the watch set: a
// config edit must trigger a rebuild even for a workspace with no specs
// configured yet, since watchRoots alone only derives directories from
// specs the config currently names. spec.md's watch-path-minimality
// invariant bounds the watched set at this directory plus ".git"; ".git"
// itself is never added here since the watcher's own noise filter
// (skipDirs) already treats it as unwatched, so adding it would be a root
// with no effect.
func configWatchRoots(root, configPath string) []string {
	var extra []string
	if rel, err := filepath.Rel(root, filepath.Dir(configPath)); err == nil && !strings.HasPrefix(rel, "..") {
		extra = append(extra, rel)
	}
	return extra
}

// watchRoots aggregates the literal (non-glob) directory prefixes of every
// configured spec and impl include pattern into a deduplicated watch list,
// so the watcher never has to walk the whole project root when the config
// scopes specs and impls to specific subtrees.
func watchRoots(cfg *config.Config) []string {
	seen := map[string]bool{}
	var out []string
	add := func(pattern string) {
		prefix := watcher.LiteralPrefix(pattern)
		if !seen[prefix] {
			seen[prefix] = true
			out = append(out, prefix)
		}
	}

	if cfg == nil {
		return nil
	}
	for _, spec := range cfg.Specs {
		for _, inc := range spec.Include {
			add(inc)
		}
		for _, impl := range spec.Impls {
			for _, inc := range impl.Include {
				add(inc)
			}
			for _, inc := range impl.TestInclude {
				add(inc)
			}
		}
	}
	return out
}

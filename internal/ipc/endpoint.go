// Package ipc implements the local RPC service (C13): a per-workspace Unix
// domain socket (named pipe on Windows) carrying newline-delimited JSON
// requests, backed by an internal/engine.Engine and exposing the
// internal/query and internal/lspops operations plus VFS/subscribe/health/
// shutdown. Endpoint lifecycle, idle shutdown, and Prometheus metrics live
// here; protocol framing is a plain JSON object per line, matching the
// teacher's own JSON-over-HTTP request/response shape translated onto a
// socket transport.
package ipc

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"

	"lukechampine.com/blake3"
)

// WorkspaceDir returns <state_home>/tracey/<hash16>/, the per-workspace
// directory holding the socket, PID file, canonical root marker, and log
// (spec.md §6's "State directory layout"), creating it if necessary.
// <hash16> is the first 16 hex characters of a Blake3 hash of the
// canonicalized project root.
func WorkspaceDir(projectRoot string) (string, error) {
	canon, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", err
	}
	canon = filepath.Clean(canon)

	sum := blake3.Sum256([]byte(canon))
	id := hex.EncodeToString(sum[:])[:16]

	base, err := StateDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(base, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// EndpointPath returns the Unix domain socket path (or named pipe path on
// Windows) for projectRoot, per spec.md §6.
func EndpointPath(projectRoot string) (string, error) {
	dir, err := WorkspaceDir(projectRoot)
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		return `\\.\pipe\tracey-` + filepath.Base(dir), nil
	}
	return filepath.Join(dir, "daemon.sock"), nil
}

// PIDFilePath returns "<workspace-dir>/daemon.pid", storing "pid=<N>\nversion=<protocol-version>\n".
func PIDFilePath(projectRoot string) (string, error) {
	dir, err := WorkspaceDir(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// ProjectRootMarkerPath returns "<workspace-dir>/project-root", the file
// holding the canonicalized project root as raw bytes — lets `tracey kill`
// and log viewers recover the root from just the workspace directory.
func ProjectRootMarkerPath(projectRoot string) (string, error) {
	dir, err := WorkspaceDir(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "project-root"), nil
}

// LogPath returns "<workspace-dir>/daemon.log".
func LogPath(projectRoot string) (string, error) {
	dir, err := WorkspaceDir(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}

// EventLogPath returns "<workspace-dir>/events.yaml", the structured
// sidecar EventLog appends rebuild/watcher envelopes to alongside the
// plain-text daemon.log.
func EventLogPath(projectRoot string) (string, error) {
	dir, err := WorkspaceDir(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "events.yaml"), nil
}

// StateDir returns the platform state directory tracey's endpoints and
// metadata files live under, creating it if necessary.
func StateDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = os.TempDir()
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".local", "state")
		} else {
			base = os.TempDir()
		}
	}

	dir := filepath.Join(base, "tracey")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

package ipc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProtocolVersion is bumped whenever the wire shape of Request/Response or
// any payload type changes incompatibly. The daemon writes it to daemon.pid
// so a client built against a different version refuses to talk to it
// instead of misinterpreting a reply (spec.md §6: "Clients refuse to
// connect on mismatch").
const ProtocolVersion = 1

// PIDInfo is the parsed content of a daemon.pid file.
type PIDInfo struct {
	PID     int
	Version int
}

// WritePIDFile writes "pid=<N>\nversion=<protocol-version>\n" to path.
func WritePIDFile(path string, pid int) error {
	content := fmt.Sprintf("pid=%d\nversion=%d\n", pid, ProtocolVersion)
	return os.WriteFile(path, []byte(content), 0o644)
}

// ReadPIDFile parses a daemon.pid file written by WritePIDFile.
func ReadPIDFile(path string) (PIDInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PIDInfo{}, err
	}
	info := PIDInfo{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "pid":
			info.PID = n
		case "version":
			info.Version = n
		}
	}
	return info, nil
}

// CheckProtocolVersion reads pidPath and returns an error if the daemon's
// recorded protocol version does not match this client's ProtocolVersion.
// A missing or unparseable pid file is not itself an error here — Dial's
// own connection attempt is what surfaces an unreachable daemon.
func CheckProtocolVersion(pidPath string) error {
	info, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil
	}
	if info.Version != 0 && info.Version != ProtocolVersion {
		return fmt.Errorf("daemon protocol version %d does not match client version %d; restart the daemon", info.Version, ProtocolVersion)
	}
	return nil
}

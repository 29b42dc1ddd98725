package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/tracey-dev/tracey/internal/ipc"
	"github.com/tracey-dev/tracey/internal/ui"
)

// runKill stops a running daemon for root by reading its PID file and
// sending SIGTERM, which the daemon's signal handler turns into a clean
// Server.Shutdown.
func runKill(args []string, configPath string, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	pidPath, err := ipc.PIDFilePath(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	info, err := ipc.ReadPIDFile(pidPath)
	if err != nil {
		ui.Warning("No daemon.pid found; nothing to kill.")
		return exitOK
	}
	if info.PID <= 0 {
		ui.Warning("daemon.pid did not contain a valid pid.")
		return exitFail
	}

	proc, err := os.FindProcess(info.PID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to signal pid %d: %v\n", info.PID, err)
		return exitFail
	}

	if !globals.Quiet {
		fmt.Printf("Sent SIGTERM to daemon (pid %d).\n", info.PID)
	}
	return exitOK
}

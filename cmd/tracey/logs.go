package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tracey-dev/tracey/internal/ipc"
)

// runLogs tails root's daemon.log, optionally following new writes like
// `tail -f`.
func runLogs(args []string, configPath string, follow bool, tailLines int, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	logPath, err := ipc.LogPath(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	f, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No log file at %s (is the daemon running?)\n", logPath)
		return exitFail
	}
	defer f.Close()

	if err := printTail(f, tailLines); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	if !follow {
		return exitOK
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fmt.Print(line)
		}
		if err != nil {
			if err == io.EOF {
				time.Sleep(250 * time.Millisecond)
				continue
			}
			fmt.Fprintln(os.Stderr, err)
			return exitFail
		}
	}
}

// printTail prints the last n lines of f, leaving the read cursor at EOF so
// a subsequent follow loop only sees new writes.
func printTail(f *os.File, n int) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var ring []string
	for scanner.Scan() {
		ring = append(ring, scanner.Text())
		if len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range ring {
		fmt.Println(line)
	}
	return nil
}

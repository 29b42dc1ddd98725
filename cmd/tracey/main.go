// Package main implements the tracey CLI: the daemon, editor-protocol
// servers, and the read-only query/validation commands that either talk to
// a running daemon or fall back to an ephemeral engine build.
//
// Usage:
//
//	tracey daemon [root] [-c config]          Run the long-lived engine + watcher
//	tracey lsp [root] [-c config]              Run the Language Server Protocol adapter
//	tracey mcp [root] [-c config]              Run the Model Context Protocol adapter
//	tracey web [root] [-c config] [-p port]    Run the local web dashboard
//	tracey status [root] [--json]              Show coverage roll-up
//	tracey logs [root] [-f] [-n N]             Tail the daemon's log
//	tracey kill [root]                         Stop a running daemon
//	tracey query [root] <subcommand>           Run a read-only query
//	tracey pre-commit [root]                   Fail if staged rules lack a version bump
//	tracey bump [root]                         Bump unbumped rules and re-stage them
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tracey-dev/tracey/internal/ui"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// GlobalFlags holds the flags shared by every subcommand.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("tracey", flag.ContinueOnError)
	fs.SetInterspersed(false)

	jsonOutput := fs.Bool("json", false, "Output in JSON format (for applicable commands)")
	noColor := fs.Bool("no-color", false, "Disable color output")
	verbose := fs.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
	quiet := fs.BoolP("quiet", "q", false, "Suppress non-essential output")
	configPath := fs.StringP("config", "c", "", "Path to .config/tracey/config.styx (default: <root>/.config/tracey/config.styx)")
	port := fs.IntP("port", "p", 4870, "Port for the web dashboard")
	openBrowser := fs.Bool("open", false, "Open the web dashboard in a browser")
	devMode := fs.Bool("dev", false, "Run the web dashboard in dev mode (adds a dev-mode banner comment to the page)")
	follow := fs.BoolP("follow", "f", false, "Follow the daemon log (like tail -f)")
	lines := fs.IntP("lines", "n", 100, "Number of trailing log lines to show")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `tracey - requirements traceability engine

Usage:
  tracey <command> [root] [options]

Commands:
  daemon        Run the long-lived engine and filesystem watcher
  lsp           Run the Language Server Protocol adapter (stdio)
  mcp           Run the Model Context Protocol adapter (stdio)
  web           Run the local web dashboard
  status        Show the coverage roll-up for every spec/impl
  logs          Tail the daemon's log file
  kill          Stop a running daemon
  query         Run a read-only query (status|uncovered|untested|stale|unmapped|rule|config|validate)
  pre-commit    Fail if staged spec changes lack a version bump
  bump          Bump unbumped rules and re-stage the affected files

Global Options:
  --json            Output in JSON format
  --no-color        Disable color output (respects NO_COLOR)
  -v, --verbose     Increase verbosity (-v info, -vv debug)
  -q, --quiet       Suppress non-essential output
  -c, --config      Path to config.styx

root defaults to the current directory when omitted.
`)
	}

	if err := fs.Parse(argv); err != nil {
		return exitUsage
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		return exitUsage
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet}
	ui.InitColors(globals.NoColor)

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return exitUsage
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "daemon":
		return runDaemon(cmdArgs, *configPath, globals)
	case "lsp":
		return runLSP(cmdArgs, *configPath, globals)
	case "mcp":
		return runMCP(cmdArgs, *configPath, globals)
	case "web":
		return runWeb(cmdArgs, *configPath, *port, *openBrowser, *devMode, globals)
	case "status":
		return runStatus(cmdArgs, *configPath, globals)
	case "logs":
		return runLogs(cmdArgs, *configPath, *follow, *lines, globals)
	case "kill":
		return runKill(cmdArgs, *configPath, globals)
	case "query":
		return runQueryCommand(cmdArgs, *configPath, globals)
	case "pre-commit":
		return runPreCommit(cmdArgs, *configPath, globals)
	case "bump":
		return runBump(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		return exitUsage
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	traceerrors "github.com/tracey-dev/tracey/internal/errors"
	"github.com/tracey-dev/tracey/internal/query"
	"github.com/tracey-dev/tracey/internal/ui"
)

// runStatus executes the 'status' command, printing the coverage roll-up
// for every (spec, impl) pair.
func runStatus(args []string, configPath string, globals GlobalFlags) int {
	root, rest, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: tracey status [root] [--json]\n\nShows coverage totals for every tracked spec/impl pair.\n")
	}
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	raw, err := runQuery(root, configPath, "status", nil)
	if err != nil {
		traceerrors.FatalError(err, globals.JSON)
		return exitFail
	}

	var rows []query.ImplStatus
	if err := json.Unmarshal(raw, &rows); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	if globals.JSON {
		fmt.Println(string(raw))
		return exitOK
	}

	if len(rows) == 0 {
		ui.Info("No specs configured.")
		return exitOK
	}

	ui.Header("Coverage Status")
	for _, r := range rows {
		fmt.Printf("  %s / %s: %s covered, %s verified (%s total)\n",
			ui.Label(r.Spec), ui.Label(r.Impl),
			ui.CountText(r.Covered), ui.CountText(r.Verified), ui.CountText(r.Total))
	}
	return exitOK
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	traceerrors "github.com/tracey-dev/tracey/internal/errors"
	"github.com/tracey-dev/tracey/internal/query"
	"github.com/tracey-dev/tracey/internal/snapshot"
	"github.com/tracey-dev/tracey/internal/ui"
)

// runQueryCommand dispatches `tracey query [root] <subcommand> [flags]` to
// one of the read-only query operations exposed by internal/query.
func runQueryCommand(args []string, configPath string, globals GlobalFlags) int {
	root, rest, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tracey query [root] <status|uncovered|untested|stale|unmapped|rule|config|validate> [flags]")
		return exitUsage
	}

	sub := rest[0]
	subArgs := rest[1:]

	fs := flag.NewFlagSet("query "+sub, flag.ContinueOnError)
	spec := fs.String("spec", "", "Restrict to this spec")
	impl := fs.String("impl", "", "Restrict to this impl")
	prefix := fs.String("prefix", "", "Restrict to this rule-id prefix")
	path := fs.String("path", "", "Restrict to this path prefix (unmapped)")
	id := fs.String("id", "", "Rule-id, e.g. auth.login or auth.login+2 (rule)")
	if err := fs.Parse(subArgs); err != nil {
		return exitUsage
	}

	op := sub
	queryArgs := map[string]any{}
	switch sub {
	case "status":
	case "uncovered", "untested":
		queryArgs["spec"], queryArgs["impl"], queryArgs["prefix"] = *spec, *impl, *prefix
	case "stale", "validate":
		queryArgs["spec"] = *spec
	case "unmapped":
		queryArgs["path"] = *path
	case "rule":
		queryArgs["id"] = *id
	case "config":
	default:
		fmt.Fprintf(os.Stderr, "Unknown query subcommand: %s\n", sub)
		return exitUsage
	}

	raw, err := runQuery(root, configPath, op, queryArgs)
	if err != nil {
		traceerrors.FatalError(err, globals.JSON)
		return exitFail
	}

	if globals.JSON {
		fmt.Println(string(raw))
		return exitOK
	}

	return printQueryResult(sub, raw)
}

func printQueryResult(sub string, raw []byte) int {
	switch sub {
	case "uncovered", "untested":
		var rules []snapshot.RuleWithRefs
		if err := json.Unmarshal(raw, &rules); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFail
		}
		if len(rules) == 0 {
			ui.Info("Nothing found.")
			return exitOK
		}
		for _, r := range rules {
			fmt.Printf("  %s  %s\n", r.Definition.ID.String(), ui.DimText(r.Definition.Path))
		}
	case "stale", "validate":
		var diags []snapshot.Diagnostic
		if err := json.Unmarshal(raw, &diags); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFail
		}
		if len(diags) == 0 {
			ui.Info("No diagnostics.")
			return exitOK
		}
		for _, d := range diags {
			fmt.Printf("  [%s] %s:%d %s\n", d.Kind, d.Path, d.Line, d.Message)
		}
	case "unmapped":
		var files []query.FileCoverage
		if err := json.Unmarshal(raw, &files); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFail
		}
		if len(files) == 0 {
			ui.Info("Every code unit is mapped.")
			return exitOK
		}
		for _, f := range files {
			fmt.Printf("  %s: %s/%s covered\n", f.Path, ui.CountText(f.Covered), ui.CountText(f.Total))
		}
	case "rule":
		var detail query.RuleDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFail
		}
		ui.Header(detail.Definition.ID.String())
		fmt.Println(detail.Definition.Body)
		fmt.Printf("  impl: %d, verify: %d, depends: %d, related: %d\n",
			len(detail.Impl), len(detail.Verify), len(detail.Depends), len(detail.Related))
	case "config":
		fmt.Println(string(raw))
	default:
		fmt.Println(string(raw))
	}
	return exitOK
}

package main

import (
	"fmt"
	"os"

	"github.com/tracey-dev/tracey/internal/bump"
	"github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/ui"
)

// runPreCommit implements `tracey pre-commit`: it fails (exit 1) if any
// staged spec change altered a rule's body without bumping its version.
func runPreCommit(args []string, configPath string, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	cfg, err := config.Load(resolvedConfigPath(root, configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	ok, changed, err := bump.PreCommit(root, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	if ok {
		if !globals.Quiet {
			fmt.Println("No staged rule changes require a version bump.")
		}
		return exitOK
	}

	ui.Warning("The following rules changed without a version bump:")
	for _, c := range changed {
		fmt.Printf("  %s\n", c.String())
	}
	fmt.Println("Run `tracey bump` to bump and re-stage them.")
	return exitFail
}

// runBump implements `tracey bump`: it rewrites every unbumped rule's
// version and re-stages the affected spec files with `git add`.
func runBump(args []string, configPath string, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	cfg, err := config.Load(resolvedConfigPath(root, configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	changed, err := bump.Bump(root, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	if len(changed) == 0 {
		if !globals.Quiet {
			fmt.Println("No staged rule changes require a version bump.")
		}
		return exitOK
	}

	fmt.Printf("Bumped %d rule(s):\n", len(changed))
	for _, c := range changed {
		fmt.Printf("  %s\n", c.String())
	}
	fmt.Println("Affected spec files have been re-staged. Review and commit.")
	return exitOK
}

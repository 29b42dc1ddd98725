package errors

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
)

// jsonError is the wire shape FatalError emits in --json mode.
type jsonError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// FatalError prints err to stderr — as a single JSON object when jsonMode is
// set, otherwise as a colorized human-readable block with the message,
// detail, and remediation hint — and exits the process with status 1. A
// plain error (not a *UserError) is wrapped as an internal error so the
// output shape stays consistent either way.
func FatalError(err error, jsonMode bool) {
	if err == nil {
		return
	}

	ue, ok := err.(*UserError)
	if !ok {
		ue = NewInternalError("Unexpected error", err.Error(), "This is a bug. Please report it.", err)
	}

	if jsonMode {
		_ = json.NewEncoder(os.Stderr).Encode(jsonError{
			Kind:    ue.Kind,
			Message: ue.Message,
			Detail:  ue.Detail,
			Hint:    ue.Hint,
		})
		os.Exit(1)
	}

	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, ue.Message)
	if ue.Detail != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", ue.Detail)
	}
	if ue.Hint != "" {
		color.New(color.FgYellow).Fprintf(os.Stderr, "hint: ")
		fmt.Fprintln(os.Stderr, ue.Hint)
	}
	os.Exit(1)
}

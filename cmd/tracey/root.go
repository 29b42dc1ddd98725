package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/tracey-dev/tracey/internal/config"
	"github.com/tracey-dev/tracey/internal/engine"
	"github.com/tracey-dev/tracey/internal/ipc"
	"github.com/tracey-dev/tracey/internal/query"
	"github.com/tracey-dev/tracey/internal/ruleid"
	"github.com/tracey-dev/tracey/internal/snapshot"
)

// resolveRoot takes the first non-flag argument as the project root
// (defaulting to the current directory) and returns it alongside the
// remaining arguments.
func resolveRoot(args []string) (string, []string, error) {
	root := "."
	rest := args
	if len(rest) > 0 && len(rest[0]) > 0 && rest[0][0] != '-' {
		root = rest[0]
		rest = rest[1:]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", nil, err
	}
	return filepath.Clean(abs), rest, nil
}

// resolvedConfigPath returns the effective config path for root, honoring an
// explicit override.
func resolvedConfigPath(root, configPath string) string {
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			return abs
		}
		return configPath
	}
	return config.Path(root)
}

// dialOrBuild reaches a running daemon for root if one answers, otherwise
// builds an ephemeral in-process engine. Every read-only command works the
// same whether or not `tracey daemon` is already running for this root.
// Exactly one of the two return values is non-nil.
func dialOrBuild(root, configPath string) (*ipc.Client, *engine.Engine, error) {
	endpoint, err := ipc.EndpointPath(root)
	if err == nil {
		if pidPath, pErr := ipc.PIDFilePath(root); pErr == nil {
			if vErr := ipc.CheckProtocolVersion(pidPath); vErr != nil {
				return nil, nil, vErr
			}
		}
		if client, dErr := ipc.Dial(endpoint); dErr == nil {
			return client, nil, nil
		}
	}

	eng, err := engine.New(root, resolvedConfigPath(root, configPath))
	if err != nil {
		return nil, nil, err
	}
	return nil, eng, nil
}

// runQuery executes op against root's daemon (if reachable) or an ephemeral
// engine, and returns the result re-marshaled to JSON so both paths produce
// identically-shaped output.
func runQuery(root, configPath, op string, args map[string]any) (json.RawMessage, error) {
	client, eng, err := dialOrBuild(root, configPath)
	if err != nil {
		return nil, err
	}
	if client != nil {
		defer client.Close()
		resp, callErr := client.Call(op, args)
		if callErr != nil {
			return nil, callErr
		}
		if !resp.OK {
			return nil, fmt.Errorf("%s", resp.Error)
		}
		return json.Marshal(resp.Data)
	}

	result, err := localDispatch(eng.Data(), op, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// localDispatch mirrors internal/ipc.Server.dispatch's read-only operations
// against an already-built snapshot, so the CLI's no-daemon fallback path
// answers exactly like a live daemon would.
func localDispatch(data snapshot.Snapshot, op string, args map[string]any) (any, error) {
	switch op {
	case "status":
		return query.Status(data), nil
	case "uncovered":
		return query.Uncovered(data, filterFromArgs(args)), nil
	case "untested":
		return query.Untested(data, filterFromArgs(args)), nil
	case "stale":
		return query.Stale(data, filterFromArgs(args)), nil
	case "unmapped":
		return query.Unmapped(data, stringArg(args, "path")), nil
	case "rule":
		id, valid := parseRuleIDArg(args)
		if !valid {
			return nil, fmt.Errorf("rule: missing or invalid id")
		}
		detail, found := query.Rule(data, id)
		if !found {
			return nil, fmt.Errorf("rule: no such rule-id")
		}
		return detail, nil
	case "config":
		return data.Config, nil
	case "validate":
		return query.Validate(data, stringArg(args, "spec")), nil
	default:
		return nil, fmt.Errorf("unknown op: %s", op)
	}
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func filterFromArgs(args map[string]any) query.Filter {
	return query.Filter{
		Spec:   stringArg(args, "spec"),
		Impl:   stringArg(args, "impl"),
		Prefix: stringArg(args, "prefix"),
	}
}

func parseRuleIDArg(args map[string]any) (ruleid.RuleID, bool) {
	raw := stringArg(args, "id")
	if raw == "" {
		return ruleid.RuleID{}, false
	}
	base := raw
	version := 1
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == '+' {
			base = raw[:i]
			if n, err := parsePositiveInt(raw[i+1:]); err == nil {
				version = n
			}
			break
		}
	}
	if !ruleid.ValidBase(base) {
		return ruleid.RuleID{}, false
	}
	return ruleid.RuleID{Base: base, Version: version}, true
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a digit: %q", c)
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("not positive")
	}
	return n, nil
}

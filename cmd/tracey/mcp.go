package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tracey-dev/tracey/internal/engine"
	traceerrors "github.com/tracey-dev/tracey/internal/errors"
)

const (
	mcpProtocolVersion = "2024-11-05"
	mcpServerName      = "tracey"
	mcpServerVersion   = "0.1.0"
)

// traceyInstructions guides an agent toward the right query for a given
// traceability question, the same role cieInstructions plays for the
// teacher's code-intelligence tools.
const traceyInstructions = `tracey tracks bidirectional links between a requirements spec and the
code/tests that implement and verify it, using "[Verb RULE-ID]" markers
(Define/Impl/Verify/Depends/Related) embedded in comments.

Use tracey_status first to see overall coverage per spec/impl pair.
Use tracey_uncovered to find rules with no Impl reference anywhere.
Use tracey_untested to find rules with no Verify reference.
Use tracey_stale to find rules whose referencing comment disagrees with
the current spec body (the version referenced no longer matches the
Define's current version).
Use tracey_unmapped to find source files with at least one code unit that
no rule-id marker refers to.
Use tracey_rule to see full detail (body, every reference, dependents) for
one specific rule-id, e.g. "auth.login" or "auth.login+2".
Use tracey_config to see the parsed configuration tracey is using for this
workspace.
Use tracey_validate to run every structural diagnostic (duplicate
definitions, unknown prefixes, orphaned and stale references, dependency
cycles) across one spec or all of them.`

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpCapabilities struct {
	Tools map[string]any `json:"tools,omitempty"`
}

type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    mcpCapabilities `json:"capabilities"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
	Instructions    string          `json:"instructions"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type mcpToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpServer struct {
	root       string
	configPath string
	eng        *engine.Engine
}

// runMCP starts tracey's Model Context Protocol server, a line-delimited
// JSON-RPC 2.0 loop over stdin/stdout exposing its query operations as
// tools for an AI agent.
func runMCP(args []string, configPath string, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	effectiveConfigPath := resolvedConfigPath(root, configPath)
	eng, err := engine.New(root, effectiveConfigPath)
	if err != nil {
		traceerrors.FatalError(err, globals.JSON)
		return exitFail
	}

	server := &mcpServer{root: root, configPath: effectiveConfigPath, eng: eng}
	serveMCPLoop(server)
	return exitOK
}

func serveMCPLoop(server *mcpServer) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "tracey mcp: invalid JSON-RPC request: %v\n", err)
			continue
		}

		resp := server.handleRequest(req)
		if resp.ID == nil && resp.Result == nil && resp.Error == nil {
			continue // notification: no response
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tracey mcp: cannot encode response: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\n", respBytes)
	}
}

func (s *mcpServer) handleRequest(req jsonRPCRequest) jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpInitializeResult{
				ProtocolVersion: mcpProtocolVersion,
				Capabilities:    mcpCapabilities{Tools: map[string]any{"listChanged": false}},
				ServerInfo:      mcpServerInfo{Name: mcpServerName, Version: mcpServerVersion},
				Instructions:    traceyInstructions,
			},
		}

	case "notifications/initialized":
		return jsonRPCResponse{}

	case "tools/list":
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpToolsListResult{Tools: mcpTools}}

	case "tools/call":
		var params mcpToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}}
		}
		result := s.callTool(params)
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}

	default:
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "Method not found", Data: req.Method}}
	}
}

func (s *mcpServer) callTool(params mcpToolCallParams) *mcpToolResult {
	op, ok := toolToOp[params.Name]
	if !ok {
		return &mcpToolResult{Content: []mcpContent{{Type: "text", Text: fmt.Sprintf("Unknown tool: %s", params.Name)}}, IsError: true}
	}

	raw, err := runQuery(s.root, s.configPath, op, params.Arguments)
	if err != nil {
		return &mcpToolResult{Content: []mcpContent{{Type: "text", Text: err.Error()}}, IsError: true}
	}
	return &mcpToolResult{Content: []mcpContent{{Type: "text", Text: string(raw)}}}
}

var toolToOp = map[string]string{
	"tracey_status":    "status",
	"tracey_uncovered": "uncovered",
	"tracey_untested":  "untested",
	"tracey_stale":     "stale",
	"tracey_unmapped":  "unmapped",
	"tracey_rule":      "rule",
	"tracey_config":    "config",
	"tracey_validate":  "validate",
}

var filterSchemaProps = map[string]any{
	"spec":   map[string]any{"type": "string", "description": "Restrict to this spec name"},
	"impl":   map[string]any{"type": "string", "description": "Restrict to this impl name"},
	"prefix": map[string]any{"type": "string", "description": "Restrict to this rule-id prefix"},
}

var mcpTools = []mcpTool{
	{
		Name:        "tracey_status",
		Description: "Coverage totals (covered/verified/total rule counts) for every tracked spec/impl pair.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "tracey_uncovered",
		Description: "List every rule with a Define but no Impl reference anywhere in the codebase.",
		InputSchema: map[string]any{"type": "object", "properties": filterSchemaProps},
	},
	{
		Name:        "tracey_untested",
		Description: "List every rule with no Verify reference.",
		InputSchema: map[string]any{"type": "object", "properties": filterSchemaProps},
	},
	{
		Name:        "tracey_stale",
		Description: "List rules whose referencing markers cite a version older than the Define's current version.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"spec": map[string]any{"type": "string", "description": "Restrict to this spec name"},
		}},
	},
	{
		Name:        "tracey_unmapped",
		Description: "List source files with at least one code unit no rule-id marker refers to, optionally scoped to a path prefix.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Restrict to this path prefix"},
		}},
	},
	{
		Name:        "tracey_rule",
		Description: "Full detail for one rule-id: its body, and every Impl/Verify/Depends/Related reference.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string", "description": "Rule-id, e.g. auth.login or auth.login+2"},
			},
			"required": []string{"id"},
		},
	},
	{
		Name:        "tracey_config",
		Description: "The parsed tracey configuration currently in effect for this workspace.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "tracey_validate",
		Description: "Every structural diagnostic (duplicate definitions, unknown prefixes, orphaned and stale references, dependency cycles) for one spec or all of them.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"spec": map[string]any{"type": "string", "description": "Restrict to this spec name"},
		}},
	},
}

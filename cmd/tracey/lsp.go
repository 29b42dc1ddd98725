package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tracey-dev/tracey/internal/engine"
	traceerrors "github.com/tracey-dev/tracey/internal/errors"
	"github.com/tracey-dev/tracey/internal/lspops"
	"github.com/tracey-dev/tracey/internal/position"
)

// runLSP runs tracey as a Language Server Protocol adapter over stdio,
// translating textDocument requests into internal/lspops calls against
// root's engine. Editor buffers shadow on-disk content via the engine's VFS
// overlay, the same mechanism internal/ipc exposes to the daemon's own
// vfs_open/vfs_change/vfs_close ops.
func runLSP(args []string, configPath string, globals GlobalFlags) int {
	root, _, err := resolveRoot(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}

	eng, err := engine.New(root, resolvedConfigPath(root, configPath))
	if err != nil {
		traceerrors.FatalError(err, globals.JSON)
		return exitFail
	}

	srv := &lspServer{root: root, eng: eng}
	if err := srv.serve(os.Stdin, os.Stdout); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, err)
		return exitFail
	}
	return exitOK
}

type lspServer struct {
	root string
	eng  *engine.Engine
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErr         `json:"error,omitempty"`
}

type rpcErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *lspServer) serve(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		body, err := readFramedMessage(reader)
		if err != nil {
			return err
		}

		var req rpcMessage
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}

		if req.Method == "exit" {
			return nil
		}

		result, rpcError := s.handle(req.Method, req.Params)
		if req.ID == nil {
			continue // notification: no response expected
		}
		resp := rpcMessage{JSONRPC: "2.0", ID: req.ID, Result: result}
		if rpcError != nil {
			resp.Result = nil
			resp.Error = rpcError
		}
		if err := writeFramedMessage(out, resp); err != nil {
			return err
		}
	}
}

func readFramedMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, convErr := strconv.Atoi(strings.TrimSpace(value))
			if convErr != nil {
				return nil, fmt.Errorf("lsp: invalid Content-Length: %w", convErr)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("lsp: message with no Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFramedMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (s *lspServer) handle(method string, params json.RawMessage) (any, *rpcErr) {
	switch method {
	case "initialize":
		return map[string]any{
			"capabilities": map[string]any{
				"textDocumentSync":   1, // full-document sync
				"hoverProvider":      true,
				"definitionProvider": true,
				"referencesProvider": true,
				"renameProvider":     true,
				"codeLensProvider":   map[string]any{"resolveProvider": false},
				"completionProvider": map[string]any{"triggerCharacters": []string{"[", " "}},
			},
			"serverInfo": map[string]any{"name": "tracey", "version": "0.1.0"},
		}, nil
	case "initialized", "$/setTrace", "workspace/didChangeConfiguration":
		return nil, nil
	case "shutdown":
		return nil, nil
	case "textDocument/didOpen":
		var p didOpenParams
		_ = json.Unmarshal(params, &p)
		path := s.uriToPath(p.TextDocument.URI)
		s.eng.VFSOpen(path, []byte(p.TextDocument.Text))
		s.eng.ScheduleRebuildWithChanges([]string{path})
		return nil, nil
	case "textDocument/didChange":
		var p didChangeParams
		_ = json.Unmarshal(params, &p)
		path := s.uriToPath(p.TextDocument.URI)
		if len(p.ContentChanges) > 0 {
			s.eng.VFSChange(path, []byte(p.ContentChanges[len(p.ContentChanges)-1].Text))
			s.eng.ScheduleRebuildWithChanges([]string{path})
		}
		return nil, nil
	case "textDocument/didClose":
		var p didCloseParams
		_ = json.Unmarshal(params, &p)
		path := s.uriToPath(p.TextDocument.URI)
		s.eng.VFSClose(path)
		s.eng.ScheduleRebuildWithChanges([]string{path})
		return nil, nil
	case "textDocument/hover":
		return s.hover(params)
	case "textDocument/definition":
		return s.definition(params)
	case "textDocument/references":
		return s.references(params)
	case "textDocument/completion":
		return s.completion(params)
	case "textDocument/rename":
		return s.rename(params)
	case "textDocument/codeLens":
		return s.codeLens(params)
	default:
		return nil, nil
	}
}

type textDocumentItem struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}
type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}
type versionedTextDocumentIdentifier struct {
	URI string `json:"uri"`
}
type contentChange struct {
	Text string `json:"text"`
}
type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                 `json:"contentChanges"`
}
type didCloseParams struct {
	TextDocument versionedTextDocumentIdentifier `json:"textDocument"`
}
type lspPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}
type textDocumentPositionParams struct {
	TextDocument versionedTextDocumentIdentifier `json:"textDocument"`
	Position     lspPosition                      `json:"position"`
}

func (s *lspServer) uriToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	abs := u.Path
	if rel, relErr := filepath.Rel(s.root, abs); relErr == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(abs)
}

func (s *lspServer) pathToURI(path string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, path))
}

// resolveOffset reads path's content (overlay or on-disk) and converts an
// LSP (line, character) position to a byte offset. character is treated as
// a byte count within the line rather than a UTF-16 code-unit count: every
// spec and source file tracey scans is expected to be ASCII/UTF-8 rule-id
// text, where the distinction never arises in practice.
func (s *lspServer) resolveOffset(path string, pos lspPosition) (position.Offset, bool) {
	content, ok := s.readPath(path)
	if !ok {
		return 0, false
	}
	starts := position.NewLineStarts(content)
	lineStart := starts.LineStart(pos.Line + 1)
	return lineStart + position.Offset(pos.Character), true
}

func (s *lspServer) readPath(path string) ([]byte, bool) {
	return s.eng.Content(path)
}

func (s *lspServer) hover(params json.RawMessage) (any, *rpcErr) {
	var p textDocumentPositionParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	offset, ok := s.resolveOffset(path, p.Position)
	if !ok {
		return nil, nil
	}
	result := lspops.Hover(s.eng.Data(), path, offset)
	if !result.Found {
		return nil, nil
	}
	text := fmt.Sprintf("**%s** (%s)\n\n%s", result.RuleID, result.Verb, result.Body)
	return map[string]any{"contents": map[string]any{"kind": "markdown", "value": text}}, nil
}

func (s *lspServer) definition(params json.RawMessage) (any, *rpcErr) {
	var p textDocumentPositionParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	offset, ok := s.resolveOffset(path, p.Position)
	if !ok {
		return nil, nil
	}
	loc, found := lspops.Definition(s.eng.Data(), path, offset)
	if !found {
		return nil, nil
	}
	return map[string]any{
		"uri": s.pathToURI(loc.Path),
		"range": map[string]any{
			"start": map[string]int{"line": loc.Line - 1, "character": 0},
			"end":   map[string]int{"line": loc.Line - 1, "character": 0},
		},
	}, nil
}

func (s *lspServer) references(params json.RawMessage) (any, *rpcErr) {
	var p textDocumentPositionParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	offset, ok := s.resolveOffset(path, p.Position)
	if !ok {
		return []any{}, nil
	}
	refs := lspops.References(s.eng.Data(), path, offset)
	out := make([]any, 0, len(refs))
	for _, r := range refs {
		out = append(out, map[string]any{
			"uri": s.pathToURI(r.Path),
			"range": map[string]any{
				"start": map[string]int{"line": r.Line - 1, "character": 0},
				"end":   map[string]int{"line": r.Line - 1, "character": 0},
			},
		})
	}
	return out, nil
}

type completionParams struct {
	textDocumentPositionParams
}

func (s *lspServer) completion(params json.RawMessage) (any, *rpcErr) {
	var p completionParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	content, ok := s.readPath(path)
	if !ok {
		return []any{}, nil
	}
	starts := position.NewLineStarts(content)
	lineStart := starts.LineStart(p.Position.Line + 1)
	lineEnd := lineStart + position.Offset(p.Position.Character)
	if int(lineEnd) > len(content) {
		lineEnd = position.Offset(len(content))
	}
	typed := string(content[lineStart:lineEnd])
	open := strings.LastIndexByte(typed, '[')
	if open < 0 {
		return []any{}, nil
	}
	typed = typed[open+1:]

	items := lspops.Completion(s.eng.Data(), typed)
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{"label": it.Label, "insertText": it.Insert})
	}
	return out, nil
}

type renameParams struct {
	TextDocument versionedTextDocumentIdentifier `json:"textDocument"`
	Position     lspPosition                      `json:"position"`
	NewName      string                           `json:"newName"`
}

func (s *lspServer) rename(params json.RawMessage) (any, *rpcErr) {
	var p renameParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	offset, ok := s.resolveOffset(path, p.Position)
	if !ok {
		return nil, nil
	}
	edits := lspops.Rename(s.eng.Data(), path, offset, p.NewName)
	changes := map[string][]any{}
	for _, e := range edits {
		content, contentOK := s.readPath(e.Path)
		if !contentOK {
			continue
		}
		starts := position.NewLineStarts(content)
		startPos := starts.Position(e.Span.Start)
		endPos := starts.Position(e.Span.End)
		uri := s.pathToURI(e.Path)
		changes[uri] = append(changes[uri], map[string]any{
			"range": map[string]any{
				"start": map[string]int{"line": startPos.Line - 1, "character": startPos.Column - 1},
				"end":   map[string]int{"line": endPos.Line - 1, "character": endPos.Column - 1},
			},
			"newText": e.NewText,
		})
	}
	return map[string]any{"changes": changes}, nil
}

type codeLensParams struct {
	TextDocument versionedTextDocumentIdentifier `json:"textDocument"`
}

func (s *lspServer) codeLens(params json.RawMessage) (any, *rpcErr) {
	var p codeLensParams
	_ = json.Unmarshal(params, &p)
	path := s.uriToPath(p.TextDocument.URI)
	lenses := lspops.CodeLenses(s.eng.Data(), path)
	out := make([]any, 0, len(lenses))
	for _, l := range lenses {
		out = append(out, map[string]any{
			"range": map[string]any{
				"start": map[string]int{"line": l.Line - 1, "character": 0},
				"end":   map[string]int{"line": l.Line - 1, "character": 0},
			},
			"command": map[string]any{"title": l.Title},
		})
	}
	return out, nil
}

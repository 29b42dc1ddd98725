package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFramedMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := rpcMessage{JSONRPC: "2.0", Method: "initialize"}
	if err := writeFramedMessage(&buf, msg); err != nil {
		t.Fatalf("writeFramedMessage() error = %v", err)
	}

	body, err := readFramedMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFramedMessage() error = %v", err)
	}

	var got rpcMessage
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got.Method != "initialize" {
		t.Fatalf("Method = %q, want %q", got.Method, "initialize")
	}
}

func TestReadFramedMessage_MissingContentLength(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\r\n{}"))
	if _, err := readFramedMessage(r); err == nil {
		t.Fatal("readFramedMessage() expected error for missing Content-Length")
	}
}

func TestURIToPathAndBack(t *testing.T) {
	s := &lspServer{root: "/home/dev/project"}

	path := s.uriToPath("file:///home/dev/project/src/auth.go")
	if path != "src/auth.go" {
		t.Fatalf("uriToPath() = %q, want %q", path, "src/auth.go")
	}

	uri := s.pathToURI("src/auth.go")
	if uri != "file:///home/dev/project/src/auth.go" {
		t.Fatalf("pathToURI() = %q, want %q", uri, "file:///home/dev/project/src/auth.go")
	}
}

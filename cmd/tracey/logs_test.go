package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func writeTempLog(t *testing.T, lines []string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "tracey-log-*.log")
	if err != nil {
		t.Fatalf("CreateTemp() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	return f
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestPrintTail_FewerLinesThanLimit(t *testing.T) {
	f := writeTempLog(t, []string{"one", "two", "three"})
	out := captureStdout(t, func() {
		if err := printTail(f, 100); err != nil {
			t.Fatalf("printTail() error = %v", err)
		}
	})
	if out != "one\ntwo\nthree\n" {
		t.Fatalf("printTail() output = %q", out)
	}
}

func TestPrintTail_TruncatesToLastN(t *testing.T) {
	f := writeTempLog(t, []string{"one", "two", "three", "four"})
	out := captureStdout(t, func() {
		if err := printTail(f, 2); err != nil {
			t.Fatalf("printTail() error = %v", err)
		}
	})
	if out != "three\nfour\n" {
		t.Fatalf("printTail() output = %q", out)
	}
}

func TestPrintTail_LeavesCursorAtEOF(t *testing.T) {
	f := writeTempLog(t, []string{"one", "two"})
	captureStdout(t, func() { _ = printTail(f, 10) })

	pos, err := f.Seek(0, 1)
	if err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if pos != info.Size() {
		t.Fatalf("cursor at %d, want EOF at %d", pos, info.Size())
	}
}

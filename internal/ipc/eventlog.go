package ipc

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Event is one structured envelope appended to the daemon's event sidecar.
// The daemon's main log (see LogPath) stays the human-readable slog stream;
// this sidecar exists for tools that want to replay what happened — a
// rebuild publishing a new version, a watcher state transition — without
// scraping log lines.
type Event struct {
	Time    time.Time `yaml:"time"`
	Kind    string    `yaml:"kind"`
	Version uint64    `yaml:"version,omitempty"`
	State   string    `yaml:"state,omitempty"`
}

// EventLog appends Event envelopes to a YAML sidecar, one "---"-separated
// document per event, so a consumer can tail and decode incrementally
// instead of parsing one ever-growing array.
type EventLog struct {
	mu  sync.Mutex
	f   *os.File
	enc *yaml.Encoder
}

// OpenEventLog opens (creating if absent) the sidecar at path for appending.
func OpenEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &EventLog{f: f, enc: yaml.NewEncoder(f)}, nil
}

// Append writes ev as a new document to the sidecar.
func (l *EventLog) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(ev)
}

// Close flushes the encoder and closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	encErr := l.enc.Close()
	closeErr := l.f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// NDJSONSink writes one JSON object per line, suitable for machine
// consumers tailing a run.
type NDJSONSink struct {
	writer io.Writer
	closer io.Closer
	mu     sync.Mutex
}

// NewNDJSONSink streams to an arbitrary writer (typically stdout).
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	if w == nil {
		w = os.Stdout
	}
	return &NDJSONSink{writer: w}
}

// NewNDJSONFileSink streams to a file.
func NewNDJSONFileSink(path string) (*NDJSONSink, error) {
	if path == "" {
		return nil, fmt.Errorf("event log path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create event log directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &NDJSONSink{writer: f, closer: f}, nil
}

func (s *NDJSONSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.NewEncoder(s.writer).Encode(e); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *NDJSONSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

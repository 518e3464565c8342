package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type failingSink struct{ err error }

func (s *failingSink) Write(Event) error { return s.err }
func (s *failingSink) Close() error      { return s.err }

func TestManagerFanOut(t *testing.T) {
	var a, b bytes.Buffer
	m := NewManager()
	if err := m.AddSink(NewNDJSONSink(&a)); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}
	if err := m.AddSink(NewNDJSONSink(&b)); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}

	if err := m.Write(Event{Type: "run.started", Keys: 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if a.String() != b.String() {
		t.Fatal("sinks received different payloads")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestManagerCollectsSinkErrors(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager()
	_ = m.AddSink(&failingSink{err: boom})
	_ = m.AddSink(NewNDJSONSink(&bytes.Buffer{}))

	if err := m.Write(Event{Type: "run.started"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
	if err := m.AddSink(nil); err == nil {
		t.Fatal("expected error adding nil sink")
	}
}

func TestNDJSONSinkLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewNDJSONSink(&buf)

	events := []Event{
		{Type: "run.started", Keys: 2},
		{Type: "key.done", Key: "github.com/acme/a"},
		{Type: "run.finished", Done: 1, Failed: 1, ExitCode: 1},
	}
	for _, e := range events {
		if err := s.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var got Event
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}
	if got.Type != "key.done" || got.Key != "github.com/acme/a" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)

	for _, e := range []Event{
		{Type: "run.started", Keys: 2},
		{Type: "key.started", Key: "github.com/acme/a"},
		{Type: "key.done", Key: "github.com/acme/a"},
		{Type: "key.failed", Key: "github.com/acme/b", Reason: "HTTP 404"},
		{Type: "key.skipped", Key: "github.com/acme/c", Reason: "already done"},
		{Type: "run.finished", Done: 1, Failed: 1, Skipped: 1},
	} {
		if err := s.Write(e); err != nil {
			t.Fatalf("Write(%s) failed: %v", e.Type, err)
		}
	}

	out := buf.String()
	for _, want := range []string{
		"Harvesting 2 repositories",
		"[done] github.com/acme/a",
		"[fail] github.com/acme/b - HTTP 404",
		"[skip] github.com/acme/c (already done)",
		"1 done",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "key.started") {
		t.Fatal("key.started must be silent in text mode")
	}
}

package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ConsoleSink writes human-readable progress lines. Per-key lines go to the
// writer as they complete; the run summary is colorized.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleSink{writer: w}
}

func (s *ConsoleSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case "run.started":
		_, err := fmt.Fprintf(s.writer, "Harvesting %d repositories...\n", e.Keys)
		return err
	case "key.done":
		_, err := fmt.Fprintf(s.writer, "[done] %s\n", e.Key)
		return err
	case "key.skipped":
		_, err := fmt.Fprintf(s.writer, "[skip] %s (%s)\n", e.Key, e.Reason)
		return err
	case "key.failed":
		_, err := fmt.Fprintf(s.writer, "[fail] %s - %s\n", e.Key, e.Reason)
		return err
	case "run.finished":
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		if _, err := fmt.Fprint(s.writer, "Run complete: "); err != nil {
			return err
		}
		green.Fprintf(s.writer, "%d done", e.Done)
		fmt.Fprint(s.writer, ", ")
		red.Fprintf(s.writer, "%d failed", e.Failed)
		fmt.Fprint(s.writer, ", ")
		yellow.Fprintf(s.writer, "%d skipped", e.Skipped)
		_, err := fmt.Fprintln(s.writer)
		return err
	default:
		// key.started and future event types are noise in text mode.
		return nil
	}
}

func (s *ConsoleSink) Close() error { return nil }

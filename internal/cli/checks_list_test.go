package cli

import (
	"bytes"
	"strings"
	"testing"

	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
)

// mockCheck implements checks.Check for testing purposes
type mockCheck struct {
	name        string
	title       string
	description string
}

func (m *mockCheck) Name() string        { return m.name }
func (m *mockCheck) Title() string       { return m.title }
func (m *mockCheck) Description() string { return m.description }
func (m *mockCheck) Evaluate(s *fetch.Snapshot) checks.Result {
	return checks.Result{}
}

func TestPrintCheck(t *testing.T) {
	c := &mockCheck{
		name:        "simple-check",
		title:       "Simple Check",
		description: "A simple check description",
	}

	var buf bytes.Buffer
	printCheck(&buf, c)

	out := buf.String()
	for _, want := range []string{
		"CHECK: simple-check",
		"Simple Check",
		"A simple check description",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printCheck output missing %q; output=%s", want, out)
		}
	}
}

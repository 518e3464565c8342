package output

import "repoharvest/internal/checks"

// Event is a lifecycle record for the console and NDJSON streams.
//
// Emitted types:
// - run.started
// - key.started
// - key.done
// - key.skipped
// - key.failed
// - run.finished
type Event struct {
	Type   string `json:"type"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Checks carries the evaluated results on key.done events.
	Checks []checks.Result `json:"checks,omitempty"`

	// run.started / run.finished fields
	Keys     int `json:"keys,omitempty"`
	Done     int `json:"done,omitempty"`
	Failed   int `json:"failed,omitempty"`
	Skipped  int `json:"skipped,omitempty"`
	ExitCode int `json:"exit_code,omitempty"`
}

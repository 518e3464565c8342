package checks

import (
	"fmt"
	"sort"
	"sync"

	"repoharvest/internal/fetch"
)

// Check is one pure predicate over a fetched repository snapshot. Checks must
// not perform network access of their own and must not share mutable state;
// everything they need is on the Snapshot.
type Check interface {
	Name() string
	Title() string
	Description() string

	// Evaluate inspects the snapshot and returns present/absent/unknown.
	// A check that cannot determine an outcome (missing snapshot section)
	// returns unknown, never an error that would abort the row.
	Evaluate(s *fetch.Snapshot) Result
}

var (
	registry = make(map[string]Check)
	mu       sync.RWMutex
)

func Register(c Check) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[c.Name()]; exists {
		panic(fmt.Sprintf("check %s already registered", c.Name()))
	}
	registry[c.Name()] = c
}

// List returns all registered checks sorted by name. The sorted order is also
// the report's column order, so it must be stable across runs.
func List() []Check {
	mu.RLock()
	defer mu.RUnlock()
	var cs []Check
	for _, c := range registry {
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name() < cs[j].Name() })
	return cs
}

// Names returns the sorted names of all registered checks.
func Names() []string {
	cs := List()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name()
	}
	return names
}

// RunAll evaluates every registered check against the snapshot. A check that
// panics yields an unknown outcome for its own column and does not disturb
// the other checks or the row.
func RunAll(s *fetch.Snapshot) []Result {
	cs := List()
	results := make([]Result, 0, len(cs))
	for _, c := range cs {
		results = append(results, runOne(c, s))
	}
	return results
}

func runOne(c Check, s *fetch.Snapshot) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Check:   c.Name(),
				Outcome: OutcomeUnknown,
				Detail:  fmt.Sprintf("check panicked: %v", r),
			}
		}
	}()
	res = c.Evaluate(s)
	if res.Check == "" {
		res.Check = c.Name()
	}
	return res
}

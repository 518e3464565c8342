package report

import (
	"strconv"
	"time"

	"repoharvest/internal/checks"
	"repoharvest/internal/key"
)

// Record is one output row: the repository key, the enrichment metadata, one
// column per registered check, and run provenance. The dataset holds at most
// one Record per key.
type Record struct {
	Key key.Key

	// Input passthrough.
	User string
	Date string

	Language   string
	Stars      int
	Forks      int
	OpenIssues int

	// Contributors and Downloads are -1 when the corresponding snapshot
	// section could not be fetched; rendered as an empty CSV cell.
	Contributors int
	Downloads    int64

	Checks []checks.Result

	RunID     string
	FetchedAt time.Time
}

// fixed columns before the per-check columns
var keyColumns = []string{"service", "owner", "name", "user", "date",
	"language", "stars", "forks", "open_issues", "contributors", "downloads"}

// provenance columns after the per-check columns
var provenanceColumns = []string{"run_id", "fetched_at"}

// Header returns the CSV header for the given check column set.
func Header(checkNames []string) []string {
	h := make([]string, 0, len(keyColumns)+len(checkNames)+len(provenanceColumns))
	h = append(h, keyColumns...)
	h = append(h, checkNames...)
	h = append(h, provenanceColumns...)
	return h
}

// row renders the record in the column order of Header(checkNames). Checks
// not present on the record render as empty cells, never as a wrong column.
func (r Record) row(checkNames []string) []string {
	byName := make(map[string]checks.Result, len(r.Checks))
	for _, c := range r.Checks {
		byName[c.Check] = c
	}

	out := make([]string, 0, len(keyColumns)+len(checkNames)+len(provenanceColumns))
	out = append(out,
		r.Key.Service, r.Key.Owner, r.Key.Name,
		r.User, r.Date,
		r.Language,
		strconv.Itoa(r.Stars),
		strconv.Itoa(r.Forks),
		strconv.Itoa(r.OpenIssues),
		optionalInt(int64(r.Contributors)),
		optionalInt(r.Downloads),
	)
	for _, name := range checkNames {
		if c, ok := byName[name]; ok {
			out = append(out, string(c.Outcome))
		} else {
			out = append(out, "")
		}
	}
	out = append(out, r.RunID, r.FetchedAt.UTC().Format(time.RFC3339))
	return out
}

func optionalInt(v int64) string {
	if v < 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

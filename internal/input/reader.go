package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"repoharvest/internal/key"
)

// Row is one input CSV row: a repository key plus optional passthrough
// metadata. Rows are read once per run and never mutated.
type Row struct {
	Key  key.Key
	User string
	Date string
}

// Candidate column names for the repository URL, in preference order.
var urlColumns = []string{"html_url", "url", "repo_url", "repository"}

// Read parses an input CSV. The header must contain a repository URL column
// (html_url or equivalent). Rows whose URL cannot be parsed are returned as
// malformed entries alongside the valid rows so the caller can report them
// instead of silently dropping them.
func Read(path string) ([]Row, []Malformed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return parse(f)
}

// Malformed records an input row that could not be turned into a Row.
type Malformed struct {
	Line  int
	Value string
	Err   error
}

func parse(r io.Reader) ([]Row, []Malformed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("input is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read input header: %w", err)
	}

	urlCol := -1
	userCol := -1
	dateCol := -1
	for i, name := range header {
		n := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, cand := range urlColumns {
			if n == cand && urlCol == -1 {
				urlCol = i
			}
		}
		switch n {
		case "user", "username":
			userCol = i
		case "date", "added_at":
			dateCol = i
		}
	}
	if urlCol == -1 {
		return nil, nil, fmt.Errorf("input header has no repository URL column (expected one of: %s)", strings.Join(urlColumns, ", "))
	}

	var rows []Row
	var bad []Malformed
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("read input line %d: %w", line, err)
		}
		if urlCol >= len(rec) {
			continue
		}
		raw := strings.TrimSpace(rec[urlCol])
		if raw == "" {
			continue
		}
		k, err := key.Parse(raw)
		if err != nil {
			bad = append(bad, Malformed{Line: line, Value: raw, Err: err})
			continue
		}
		row := Row{Key: k}
		if userCol >= 0 && userCol < len(rec) {
			row.User = strings.TrimSpace(rec[userCol])
		}
		if dateCol >= 0 && dateCol < len(rec) {
			row.Date = strings.TrimSpace(rec[dateCol])
		}
		rows = append(rows, row)
	}

	return rows, bad, nil
}

// Dedupe returns rows with duplicate keys removed, keeping the first
// occurrence. Input files assembled by hand frequently repeat entries.
func Dedupe(rows []Row) []Row {
	seen := make(map[key.Key]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		out = append(out, r)
	}
	return out
}

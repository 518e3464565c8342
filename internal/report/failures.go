package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"repoharvest/internal/key"
)

// Failure is one key that ended the run in the failed state, with its reason.
type Failure struct {
	Key    key.Key
	Reason string
}

// WriteFailures writes the end-of-run failure list. The file feeds targeted
// reruns via --force-retry-failed.
func WriteFailures(path string, failures []Failure) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create failures directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failures file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"service", "owner", "name", "reason"}); err != nil {
		f.Close()
		return fmt.Errorf("write failures header: %w", err)
	}
	for _, fl := range failures {
		row := []string{fl.Key.Service, fl.Key.Owner, fl.Key.Name, fl.Reason}
		if err := cw.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write failure %s: %w", fl.Key, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write failures: %w", err)
	}
	return f.Close()
}

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"repoharvest/internal/key"
)

// CompactStats summarizes one compaction pass.
type CompactStats struct {
	Total   int
	Kept    int
	Dropped int
}

// Compact rewrites the dataset keeping only the last record per key. The
// normal write path never appends a duplicate, so compaction is a repair tool
// for datasets produced by older tooling. The rewrite goes through a temp
// file in the same directory and an atomic rename, so a crash mid-compaction
// leaves the original dataset untouched.
func Compact(path string) (CompactStats, error) {
	var stats CompactStats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return stats, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return stats, fmt.Errorf("read dataset header: %w", err)
	}

	// Last record per key wins; row order of first occurrence is preserved
	// so compaction is stable.
	type slot struct {
		order int
		row   []string
	}
	byKey := make(map[key.Key]slot)
	order := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read dataset: %w", err)
		}
		if len(rec) < 3 {
			continue
		}
		stats.Total++
		k := key.Key{Service: rec[0], Owner: rec[1], Name: rec[2]}
		if prev, ok := byKey[k]; ok {
			byKey[k] = slot{order: prev.order, row: rec}
		} else {
			byKey[k] = slot{order: order, row: rec}
			order++
		}
	}

	rows := make([][]string, len(byKey))
	for _, s := range byKey {
		rows[s.order] = s.row
	}
	stats.Kept = len(rows)
	stats.Dropped = stats.Total - stats.Kept

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".compact-*")
	if err != nil {
		return stats, fmt.Errorf("create temp dataset: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	cw := csv.NewWriter(tmp)
	if err := cw.Write(header); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("write compacted header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			tmp.Close()
			return stats, fmt.Errorf("write compacted dataset: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("write compacted dataset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return stats, fmt.Errorf("sync compacted dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return stats, fmt.Errorf("close compacted dataset: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return stats, fmt.Errorf("replace dataset: %w", err)
	}
	return stats, nil
}

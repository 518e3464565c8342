package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"repoharvest/internal/key"
)

// ErrDuplicateKey is returned by Append when the dataset already holds a
// record for the key. Callers treat it as "already written" and reconcile the
// checkpoint instead of appending a second row.
var ErrDuplicateKey = errors.New("record already exists for key")

// Writer appends records to the output CSV while enforcing the
// one-record-per-key invariant. The physical file is append-only; the keyed
// view comes from loading existing keys at open time and refusing repeats.
// Each append is flushed and fsynced before returning so that a record
// reported as written survives a crash immediately after.
type Writer struct {
	path       string
	file       *os.File
	cw         *csv.Writer
	checkNames []string

	mu   sync.Mutex
	keys map[key.Key]struct{}
}

// OpenWriter opens the dataset for appending. An existing file must carry the
// expected header for the registered check set; a mismatch means the dataset
// was produced by a different configuration and appending would misalign
// columns.
func OpenWriter(path string, checkNames []string) (*Writer, error) {
	if path == "" {
		return nil, errors.New("output path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	keys, hadHeader, err := loadExisting(path, checkNames)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	w := &Writer{
		path:       path,
		file:       f,
		cw:         csv.NewWriter(f),
		checkNames: checkNames,
		keys:       keys,
	}

	if !hadHeader {
		if err := w.cw.Write(Header(checkNames)); err != nil {
			f.Close()
			return nil, fmt.Errorf("write output header: %w", err)
		}
		w.cw.Flush()
		if err := w.cw.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write output header: %w", err)
		}
	}

	return w, nil
}

// loadExisting reads the current dataset, validating the header and
// collecting the keys already present.
func loadExisting(path string, checkNames []string) (map[key.Key]struct{}, bool, error) {
	keys := make(map[key.Key]struct{})

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return keys, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open existing output: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return keys, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read existing output header: %w", err)
	}
	want := Header(checkNames)
	if !equalHeader(header, want) {
		return nil, false, fmt.Errorf("existing output header does not match registered checks (got %d columns, want %d); run compact or use a fresh output file", len(header), len(want))
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, false, fmt.Errorf("read existing output line %d: %w", line, err)
		}
		if len(rec) < 3 {
			continue
		}
		keys[key.Key{Service: rec[0], Owner: rec[1], Name: rec[2]}] = struct{}{}
	}

	return keys, true, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Keys returns a copy of the keys currently present in the dataset. The
// harvester uses this at startup to reconcile records written just before a
// crash against checkpoints still marked pending.
func (w *Writer) Keys() map[key.Key]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[key.Key]struct{}, len(w.keys))
	for k := range w.keys {
		out[k] = struct{}{}
	}
	return out
}

// Has reports whether a record for the key is already in the dataset.
func (w *Writer) Has(k key.Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.keys[k]
	return ok
}

// Append writes one record durably. Returns ErrDuplicateKey without touching
// the file if the key already has a record.
func (w *Writer) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.keys[r.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, r.Key)
	}

	if err := w.cw.Write(r.row(w.checkNames)); err != nil {
		return fmt.Errorf("append record %s: %w", r.Key, err)
	}
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("append record %s: %w", r.Key, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync output after %s: %w", r.Key, err)
	}

	w.keys[r.Key] = struct{}{}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cw.Flush()
	err := w.cw.Error()
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

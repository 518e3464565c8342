package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"repoharvest/internal/key"
)

// Status is the durable processing state of one repository key.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Entry is one checkpoint record. Entries persist across runs: a restarted
// harvest skips done and failed keys and reprocesses pending ones.
type Entry struct {
	Key         key.Key
	Status      Status
	Reason      string
	LastAttempt time.Time
}

// ErrCorrupt signals that the checkpoint database cannot be trusted. The run
// must abort rather than risk silent duplication or loss.
var ErrCorrupt = errors.New("checkpoint store corrupt")

// Store is the durable key -> status map. SQLite gives us the two properties
// the pipeline needs: per-key upserts are atomic with respect to process
// termination, and the full table can be scanned on startup.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	service      TEXT NOT NULL,
	owner        TEXT NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	last_attempt INTEGER NOT NULL,
	PRIMARY KEY (service, owner, name)
)`

// Open opens (creating if needed) the checkpoint database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("checkpoint path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrCorrupt, err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

// Load scans all entries. A row with an unrecognized status means the store
// has been tampered with or half-written by something else, and is treated as
// corruption.
func (s *Store) Load(ctx context.Context) (map[key.Key]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, owner, name, status, reason, last_attempt FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	entries := make(map[key.Key]Entry)
	for rows.Next() {
		var e Entry
		var status string
		var ts int64
		if err := rows.Scan(&e.Key.Service, &e.Key.Owner, &e.Key.Name, &status, &e.Reason, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrCorrupt, err)
		}
		switch Status(status) {
		case StatusPending, StatusDone, StatusFailed:
			e.Status = Status(status)
		default:
			return nil, fmt.Errorf("%w: entry %s has unknown status %q", ErrCorrupt, e.Key, status)
		}
		if err := e.Key.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		e.LastAttempt = time.Unix(ts, 0).UTC()
		entries[e.Key] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrCorrupt, err)
	}
	return entries, nil
}

// IsDone reports whether the key has already been durably completed.
func (s *Store) IsDone(ctx context.Context, k key.Key) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM checkpoints WHERE service = ? AND owner = ? AND name = ?`,
		k.Service, k.Owner, k.Name).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkpoint lookup %s: %w", k, err)
	}
	return Status(status) == StatusDone, nil
}

// MarkPending records that the key has been seen. It never downgrades a done
// or failed entry; failed entries are reset explicitly via ResetFailed.
func (s *Store) MarkPending(ctx context.Context, k key.Key) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (service, owner, name, status, reason, last_attempt)
		VALUES (?, ?, ?, ?, '', ?)
		ON CONFLICT (service, owner, name) DO UPDATE
		SET status = excluded.status, last_attempt = excluded.last_attempt
		WHERE checkpoints.status = ?`,
		k.Service, k.Owner, k.Name, StatusPending, s.now().Unix(), StatusPending)
	if err != nil {
		return fmt.Errorf("checkpoint mark pending %s: %w", k, err)
	}
	return nil
}

// MarkDone records durable completion of the key.
func (s *Store) MarkDone(ctx context.Context, k key.Key) error {
	return s.upsert(ctx, k, StatusDone, "")
}

// MarkFailed records a permanent failure with its reason.
func (s *Store) MarkFailed(ctx context.Context, k key.Key, reason string) error {
	return s.upsert(ctx, k, StatusFailed, reason)
}

func (s *Store) upsert(ctx context.Context, k key.Key, status Status, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (service, owner, name, status, reason, last_attempt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (service, owner, name) DO UPDATE
		SET status = excluded.status, reason = excluded.reason, last_attempt = excluded.last_attempt`,
		k.Service, k.Owner, k.Name, status, reason, s.now().Unix())
	if err != nil {
		return fmt.Errorf("checkpoint mark %s %s: %w", status, k, err)
	}
	return nil
}

// ResetFailed flips all failed entries back to pending so they are retried.
// Used by --force-retry-failed. Returns how many entries were reset.
func (s *Store) ResetFailed(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET status = ?, reason = '', last_attempt = ? WHERE status = ?`,
		StatusPending, s.now().Unix(), StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("checkpoint reset failed entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PendingKeys returns all pending keys in insertion order.
func (s *Store) PendingKeys(ctx context.Context) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, owner, name FROM checkpoints WHERE status = ? ORDER BY rowid`,
		StatusPending)
	if err != nil {
		return nil, fmt.Errorf("checkpoint pending keys: %w", err)
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		var k key.Key
		if err := rows.Scan(&k.Service, &k.Owner, &k.Name); err != nil {
			return nil, fmt.Errorf("checkpoint pending keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"repoharvest/internal/checkpoint"
	"repoharvest/internal/checks"
	"repoharvest/internal/fetch"
	"repoharvest/internal/input"
	"repoharvest/internal/key"
	"repoharvest/internal/output"
	"repoharvest/internal/report"
)

// Harvester drives each repository key through its state machine:
// pending -> fetching -> checking -> writing -> done, with failed terminal
// from fetching. The checkpoint store and the fetcher's governor are the only
// state shared between keys.
type Harvester struct {
	Fetcher     *fetch.Fetcher
	Store       *checkpoint.Store
	Writer      *report.Writer
	Out         *output.Manager
	RunID       string
	Concurrency int

	// MaxKeys caps how many keys are processed this run. 0 means unlimited.
	// Skipped keys do not count against the cap; the remainder stays pending.
	MaxKeys int
}

// Summary is the end-of-run accounting surfaced to the operator.
type Summary struct {
	Done     int
	Failed   int
	Skipped  int
	Failures []report.Failure
}

// outcome is the terminal state of one key within this run.
type outcome struct {
	key     key.Key
	status  checkpoint.Status
	reason  string
	results []checks.Result
	skipped bool
	aborted bool
}

// Run processes all input rows and returns the run summary. It is safe to
// rerun with the same inputs: done and failed keys are skipped via the
// checkpoint store, and records already present in the dataset are
// reconciled instead of re-appended.
func (h *Harvester) Run(ctx context.Context, rows []input.Row) (Summary, error) {
	if h.Concurrency <= 0 {
		return Summary{}, fmt.Errorf("concurrency must be >= 1, got %d", h.Concurrency)
	}

	pending, skipped, err := h.reconcile(ctx, rows)
	if err != nil {
		return Summary{}, err
	}

	if h.MaxKeys > 0 && len(pending) > h.MaxKeys {
		pending = pending[:h.MaxKeys]
	}

	var sum Summary
	sum.Skipped = len(skipped)
	for _, o := range skipped {
		h.emit(output.Event{Type: "key.skipped", Key: o.key.String(), Reason: o.reason})
	}

	results := h.execute(ctx, pending)
	for o := range results {
		switch {
		case o.aborted:
			// Canceled before writing began; the key stays pending for the
			// next run.
			sum.Skipped++
			h.emit(output.Event{Type: "key.skipped", Key: o.key.String(), Reason: "interrupted"})
		case o.status == checkpoint.StatusDone:
			sum.Done++
			h.emit(output.Event{Type: "key.done", Key: o.key.String(), Checks: o.results})
		case o.status == checkpoint.StatusFailed:
			sum.Failed++
			sum.Failures = append(sum.Failures, report.Failure{Key: o.key, Reason: o.reason})
			h.emit(output.Event{Type: "key.failed", Key: o.key.String(), Reason: o.reason})
		}
	}

	return sum, nil
}

// reconcile loads the checkpoint table and splits the input into keys to
// process and keys to skip. A record present in the dataset while the
// checkpoint still says pending means a previous run crashed between append
// and mark-done: the checkpoint is repaired and the key skipped, never
// re-fetched or re-appended.
func (h *Harvester) reconcile(ctx context.Context, rows []input.Row) ([]input.Row, []outcome, error) {
	// Checkpoint reads and writes stay durable even when the run is being
	// canceled; interruption must never leave the store half-reconciled.
	ctx = context.WithoutCancel(ctx)
	entries, err := h.Store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	written := h.Writer.Keys()

	var pending []input.Row
	var skipped []outcome
	for _, row := range rows {
		k := row.Key
		if e, ok := entries[k]; ok {
			switch e.Status {
			case checkpoint.StatusDone:
				skipped = append(skipped, outcome{key: k, status: checkpoint.StatusDone, reason: "already done", skipped: true})
				continue
			case checkpoint.StatusFailed:
				skipped = append(skipped, outcome{key: k, status: checkpoint.StatusFailed, reason: "previously failed: " + e.Reason, skipped: true})
				continue
			}
		}
		if _, ok := written[k]; ok {
			if err := h.Store.MarkDone(ctx, k); err != nil {
				return nil, nil, err
			}
			skipped = append(skipped, outcome{key: k, status: checkpoint.StatusDone, reason: "record already in dataset", skipped: true})
			continue
		}
		if err := h.Store.MarkPending(ctx, k); err != nil {
			return nil, nil, err
		}
		pending = append(pending, row)
	}
	return pending, skipped, nil
}

// execute fans pending rows out over the worker pool and streams outcomes.
// Each key is handed to exactly one worker; a worker runs its key's state
// machine to completion before taking the next.
func (h *Harvester) execute(ctx context.Context, rows []input.Row) <-chan outcome {
	results := make(chan outcome)

	go func() {
		defer close(results)

		sem := make(chan struct{}, h.Concurrency)
		var wg sync.WaitGroup

	scheduleLoop:
		for _, row := range rows {
			if ctx.Err() != nil {
				results <- outcome{key: row.Key, aborted: true}
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- outcome{key: row.Key, aborted: true}
				continue scheduleLoop
			}

			wg.Add(1)
			go func(row input.Row) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- h.process(ctx, row)
			}(row)
		}

		wg.Wait()
	}()

	return results
}

// process runs one key's state machine to its terminal state.
func (h *Harvester) process(ctx context.Context, row input.Row) outcome {
	k := row.Key
	h.emit(output.Event{Type: "key.started", Key: k.String()})

	if ctx.Err() != nil {
		return outcome{key: k, aborted: true}
	}

	// fetching
	snap, err := h.Fetcher.Snapshot(ctx, k)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return outcome{key: k, aborted: true}
		}
		reason := failureReason(err)
		if markErr := h.Store.MarkFailed(context.WithoutCancel(ctx), k, reason); markErr != nil {
			reason = fmt.Sprintf("%s (checkpoint update failed: %v)", reason, markErr)
		}
		return outcome{key: k, status: checkpoint.StatusFailed, reason: reason}
	}

	// checking
	results := checks.RunAll(snap)

	// writing: append then mark done. A crash between the two is repaired by
	// reconcile on the next run, so the order must not change. Cancellation
	// no longer aborts the key past this point.
	rec := h.buildRecord(row, snap, results)
	if err := h.Writer.Append(rec); err != nil && !errors.Is(err, report.ErrDuplicateKey) {
		reason := fmt.Sprintf("write record: %v", err)
		if markErr := h.Store.MarkFailed(context.WithoutCancel(ctx), k, reason); markErr != nil {
			reason = fmt.Sprintf("%s (checkpoint update failed: %v)", reason, markErr)
		}
		return outcome{key: k, status: checkpoint.StatusFailed, reason: reason}
	}
	if err := h.Store.MarkDone(context.WithoutCancel(ctx), k); err != nil {
		// The record is durable; the checkpoint lags. The next run reconciles
		// the entry from the dataset, so report done rather than failed.
		return outcome{key: k, status: checkpoint.StatusDone, reason: fmt.Sprintf("checkpoint update failed: %v", err), results: results}
	}

	return outcome{key: k, status: checkpoint.StatusDone, results: results}
}

func (h *Harvester) buildRecord(row input.Row, snap *fetch.Snapshot, results []checks.Result) report.Record {
	rec := report.Record{
		Key:          row.Key,
		User:         row.User,
		Date:         row.Date,
		Contributors: snap.Contributors,
		Downloads:    snap.Downloads,
		Checks:       results,
		RunID:        h.RunID,
		FetchedAt:    snap.FetchedAt,
	}
	if snap.ContributorsErr != nil {
		rec.Contributors = -1
	}
	if snap.DownloadsErr != nil {
		rec.Downloads = -1
	}
	if r := snap.Repo; r != nil {
		rec.Language = r.GetLanguage()
		rec.Stars = r.GetStargazersCount()
		rec.Forks = r.GetForksCount()
		rec.OpenIssues = r.GetOpenIssuesCount()
	}
	return rec
}

func failureReason(err error) string {
	var perm *fetch.PermanentError
	if errors.As(err, &perm) {
		if perm.Status != 0 {
			return fmt.Sprintf("HTTP %d", perm.Status)
		}
		return perm.Error()
	}
	var exh *fetch.ExhaustedError
	if errors.As(err, &exh) {
		return exh.Error()
	}
	return err.Error()
}

func (h *Harvester) emit(e output.Event) {
	if h.Out != nil {
		_ = h.Out.Write(e)
	}
}

package harvest

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"repoharvest/internal/checkpoint"
	"repoharvest/internal/checks"
	"repoharvest/internal/config"
	"repoharvest/internal/fetch"
	gh "repoharvest/internal/github"
	"repoharvest/internal/input"
	"repoharvest/internal/output"
	"repoharvest/internal/report"
)

func exitCodeForRun(fatal, failed bool) int {
	// Exit code contract (UI spec):
	// 0 = all keys done or skipped
	// 1 = some keys failed permanently
	// 2 = fatal error (run could not proceed)
	if fatal {
		return 2
	}
	if failed {
		return 1
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(nil)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	if cfg.Output.Events != "" {
		es, err := output.NewNDJSONFileSink(cfg.Output.Events)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

func loadInput(cfg *config.Config) ([]input.Row, bool) {
	rows, malformed, err := input.Read(cfg.Input.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		return nil, false
	}
	for _, m := range malformed {
		fmt.Fprintf(os.Stderr, "Skipping input line %d: %v\n", m.Line, m.Err)
	}
	rows = input.Dedupe(rows)
	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Loaded %d repositories from %s.\n", len(rows), cfg.Input.Path)
	}
	return rows, true
}

// maybeDryRun classifies every key the way a real run would, without touching
// the API or mutating the checkpoint store, and prints the plan.
func maybeDryRun(ctx context.Context, cfg *config.Config, rows []input.Row, store *checkpoint.Store, writer *report.Writer) (int, bool) {
	if !cfg.Input.DryRun {
		return 0, false
	}

	entries, err := store.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading checkpoints: %v\n", err)
		return exitCodeForRun(true, false), true
	}
	written := writer.Keys()

	var pending, done, failed, reconciled int
	for _, row := range rows {
		if e, ok := entries[row.Key]; ok {
			switch e.Status {
			case checkpoint.StatusDone:
				done++
				continue
			case checkpoint.StatusFailed:
				failed++
				continue
			}
		}
		if _, ok := written[row.Key]; ok {
			reconciled++
			continue
		}
		pending++
		if cfg.Input.MaxKeys == 0 || pending <= cfg.Input.MaxKeys {
			fmt.Println(row.Key.String())
		}
	}

	fmt.Print(cfg.Summary())
	fmt.Printf("would process: %d (done: %d, failed: %d, reconciled: %d)\n",
		capInt(pending, cfg.Input.MaxKeys), done, failed, reconciled)
	return 0, true
}

func capInt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// Run executes a full harvest per the supplied configuration and returns the
// process exit code.
func Run(ctx context.Context, cfg *config.Config, client *gh.Client) int {
	rows, ok := loadInput(cfg)
	if !ok {
		return exitCodeForRun(true, false)
	}

	store, err := checkpoint.Open(cfg.Checkpoint.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
		return exitCodeForRun(true, false)
	}
	defer store.Close()

	if cfg.Checkpoint.ForceRetryFailed {
		n, err := store.ResetFailed(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting failed keys: %v\n", err)
			return exitCodeForRun(true, false)
		}
		if !cfg.Output.NoConsole {
			fmt.Fprintf(os.Stderr, "Reset %d failed keys to pending.\n", n)
		}
	}

	writer, err := report.OpenWriter(cfg.Output.Path, checks.Names())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return exitCodeForRun(true, false)
	}
	defer writer.Close()

	if code, ok := maybeDryRun(ctx, cfg, rows, store, writer); ok {
		return code
	}

	fetcher, err := fetch.NewFetcher(client, fetch.NewGovernor(), fetch.DefaultPolicy())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating fetcher: %v\n", err)
		return exitCodeForRun(true, false)
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false)
	}
	defer outMgr.Close()

	h := &Harvester{
		Fetcher:     fetcher,
		Store:       store,
		Writer:      writer,
		Out:         outMgr,
		RunID:       uuid.NewString(),
		Concurrency: cfg.Runtime.Concurrency,
		MaxKeys:     cfg.Input.MaxKeys,
	}

	_ = outMgr.Write(output.Event{Type: "run.started", Keys: len(rows)})

	sum, err := h.Run(ctx, rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running harvest: %v\n", err)
		return exitCodeForRun(true, false)
	}

	if len(sum.Failures) > 0 && cfg.Output.Failures != "" {
		if err := report.WriteFailures(cfg.Output.Failures, sum.Failures); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing failures file: %v\n", err)
		}
	}

	code := exitCodeForRun(false, sum.Failed > 0)
	_ = outMgr.Write(output.Event{
		Type:     "run.finished",
		Done:     sum.Done,
		Failed:   sum.Failed,
		Skipped:  sum.Skipped,
		ExitCode: code,
	})
	return code
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect
	// harvest behavior, keep the CLI flags in internal/cli/harvest.go in sync.
	Input      Input
	Checkpoint Checkpoint
	Output     Output
	Runtime    Runtime
}

type Input struct {
	// Path is the CSV file listing the repositories to harvest (see --input).
	Path string

	// MaxKeys limits how many keys to process this run (see --max-keys).
	// 0 means unlimited. Skipped keys do not count against the limit.
	MaxKeys int

	// DryRun parses the input, reconciles against the checkpoint store, and
	// prints what would be processed without calling the API (see --dry-run).
	DryRun bool
}

type Checkpoint struct {
	// Path is the SQLite checkpoint database (see --checkpoint).
	// If empty, it defaults to the output path with a .checkpoint.db suffix.
	Path string

	// ForceRetryFailed resets failed keys to pending before the run
	// (see --force-retry-failed).
	ForceRetryFailed bool
}

type Output struct {
	// Path is the enriched CSV dataset (see --output). The file is appended
	// to across runs; each repository key appears at most once.
	Path string

	// Failures writes a CSV of permanently failed keys and their reasons
	// (see --failures). If empty, it defaults to the output path with a
	// .failures.csv suffix.
	Failures string

	// Events writes an NDJSON event stream to this path (see --events).
	Events string

	// NoConsole suppresses the console sink (see --no-console).
	// Use with --events for machine-readable output.
	NoConsole bool
}

type Runtime struct {
	// Concurrency controls how many keys are processed in parallel
	// (see --concurrency). Must be >= 1.
	Concurrency int

	// Timeout is the global timeout for the run (see --timeout).
	// Must be > 0.
	Timeout time.Duration

	// Verbose enables request-level diagnostics on stderr.
	Verbose bool
}

func New() *Config {
	return &Config{
		Runtime: Runtime{
			Concurrency: 4,
			Timeout:     6 * time.Hour,
		},
	}
}

func (c *Config) Validate() error {
	c.Input.Path = strings.TrimSpace(c.Input.Path)
	c.Output.Path = strings.TrimSpace(c.Output.Path)
	c.Checkpoint.Path = strings.TrimSpace(c.Checkpoint.Path)
	c.Output.Failures = strings.TrimSpace(c.Output.Failures)
	c.Output.Events = strings.TrimSpace(c.Output.Events)

	if c.Input.Path == "" {
		return errors.New("--input must be provided")
	}
	if c.Output.Path == "" {
		return errors.New("--output must be provided")
	}

	// Derive companion paths from the output path when not set explicitly.
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = derivedPath(c.Output.Path, ".checkpoint.db")
	}
	if c.Output.Failures == "" {
		c.Output.Failures = derivedPath(c.Output.Path, ".failures.csv")
	}

	if samePath(c.Input.Path, c.Output.Path) {
		return errors.New("--input and --output must be different files")
	}
	if samePath(c.Output.Path, c.Checkpoint.Path) {
		return errors.New("--output and --checkpoint must be different files")
	}

	if c.Input.MaxKeys < 0 {
		return errors.New("--max-keys must be >= 0")
	}
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Output.NoConsole && c.Output.Events == "" && !c.Input.DryRun {
		return errors.New("--no-console requires --events")
	}

	return nil
}

// derivedPath replaces the extension of base with suffix, so out.csv becomes
// out.checkpoint.db rather than out.csv.checkpoint.db.
func derivedPath(base, suffix string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + suffix
}

func samePath(a, b string) bool {
	ca, err := filepath.Abs(filepath.Clean(a))
	if err != nil {
		return a == b
	}
	cb, err := filepath.Abs(filepath.Clean(b))
	if err != nil {
		return a == b
	}
	return ca == cb
}

// Summary renders the effective configuration for --dry-run output.
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "input:       %s\n", c.Input.Path)
	fmt.Fprintf(&b, "output:      %s\n", c.Output.Path)
	fmt.Fprintf(&b, "checkpoint:  %s\n", c.Checkpoint.Path)
	fmt.Fprintf(&b, "failures:    %s\n", c.Output.Failures)
	fmt.Fprintf(&b, "concurrency: %d\n", c.Runtime.Concurrency)
	fmt.Fprintf(&b, "timeout:     %s\n", c.Runtime.Timeout)
	return b.String()
}

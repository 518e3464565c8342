package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// harvest engine. Keeping these as constants helps avoid drift between Cobra
// flag wiring and other code paths that need to reference flags in messages.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Input.Path, flags.FlagInput, "", "...")
//	arg := "--" + flags.FlagInput
const (
	// Input
	FlagInput   = "input"
	FlagMaxKeys = "max-keys"
	FlagDryRun  = "dry-run"

	// Checkpoint
	FlagCheckpoint       = "checkpoint"
	FlagForceRetryFailed = "force-retry-failed"

	// Output
	FlagOutput    = "output"
	FlagFailures  = "failures"
	FlagEvents    = "events"
	FlagNoConsole = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
)

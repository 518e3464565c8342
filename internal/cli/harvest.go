package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repoharvest/internal/config"
	"repoharvest/internal/flags"
	gh "repoharvest/internal/github"
	"repoharvest/internal/harvest"
)

var cfg = config.New()

const harvestHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	RepoHarvest authenticates to GitHub using an access token.

	Sources (in order):
	1) GITHUB_TOKEN environment variable
	2) GitHub CLI (gh) authentication via gh auth token (if gh is installed and logged in)

  Token guidance (brief):
  - PAT (classic): public repos need no scopes; add repo to read private repos.
  - Fine-grained PAT: grant access to the target repositories with
    Metadata: Read and Contents: Read.

  Examples:
    # macOS/Linux
    export GITHUB_TOKEN="<your_token>"
    repoharvest harvest --input repos.csv --output enriched.csv

		# GitHub CLI auth
		gh auth login
		repoharvest harvest --input repos.csv --output enriched.csv

    # Windows PowerShell
    $env:GITHUB_TOKEN = "<your_token>"
    repoharvest harvest --input repos.csv --output enriched.csv

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest metadata and presence checks for a CSV of repositories",
	Long: `Harvest metadata and presence checks for every repository in the input CSV.

The input must have a header row with a repository URL column (html_url, url,
repo_url, or repository). Each repository is fetched via the GitHub API,
evaluated against the registered checks, and appended as one row to the
output dataset. RepoHarvest is read-only against GitHub: it never mutates
repository state.

Resumption:
  Progress is tracked in a SQLite checkpoint database next to the output file
  (or at --checkpoint). Rerunning with the same input and output resumes from
  where the previous run stopped. Keys that failed permanently are skipped on
  rerun unless --force-retry-failed is given.

Output:
	The console shows per-repository progress and a final summary.
	Machine-readable NDJSON lifecycle events can be written via --events; use
	--no-console together with --events for fully structured output.
	Permanently failed repositories are listed in the failures CSV (see
	--failures).

Exit codes:
	0 = all repositories harvested or skipped
	1 = some repositories failed permanently
	2 = fatal error (harvest did not run)

Examples:
  # Token via environment variable
  export GITHUB_TOKEN="<your_token>"
  repoharvest harvest --input repos.csv --output enriched.csv

  # Resume after an interrupt, retrying previously failed repositories
  repoharvest harvest --input repos.csv --output enriched.csv --force-retry-failed

	# AI Agent: stream machine-readable events
	repoharvest harvest --input repos.csv --output enriched.csv --no-console --events events.ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.Timeout)
		defer cancel()

		token, _, err := gh.ResolveAuthToken(ctx, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
			os.Exit(2)
		}
		if strings.TrimSpace(token) == "" && !cfg.Input.DryRun {
			fmt.Fprintln(os.Stderr, "Error: GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
			os.Exit(2)
		}

		client, err := gh.NewClient(ctx, token, gh.WithVerbose(cfg.Runtime.Verbose, nil))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create GitHub client: %v\n", err)
			os.Exit(2)
		}
		os.Exit(harvest.Run(ctx, cfg, client))
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	harvestCmd.SetHelpTemplate(harvestHelpTemplate)

	// Input
	harvestCmd.Flags().StringVar(&cfg.Input.Path, flags.FlagInput, "", "Input CSV listing repositories to harvest (required)")
	harvestCmd.Flags().IntVar(&cfg.Input.MaxKeys, flags.FlagMaxKeys, 0, "Maximum number of repositories to process this run (0 = unlimited)")
	harvestCmd.Flags().BoolVar(&cfg.Input.DryRun, flags.FlagDryRun, false, "Classify the input against the checkpoint store and print the plan without calling the API")

	// Checkpoint
	harvestCmd.Flags().StringVar(&cfg.Checkpoint.Path, flags.FlagCheckpoint, "", "SQLite checkpoint database (default: output path with .checkpoint.db suffix)")
	harvestCmd.Flags().BoolVar(&cfg.Checkpoint.ForceRetryFailed, flags.FlagForceRetryFailed, false, "Reset previously failed repositories to pending before the run")

	// Output
	harvestCmd.Flags().StringVar(&cfg.Output.Path, flags.FlagOutput, "", "Output CSV dataset, appended across runs (required)")
	harvestCmd.Flags().StringVar(&cfg.Output.Failures, flags.FlagFailures, "", "Failures CSV (default: output path with .failures.csv suffix)")
	harvestCmd.Flags().StringVar(&cfg.Output.Events, flags.FlagEvents, "", "Write NDJSON lifecycle events to this path")
	harvestCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --events)")

	// Runtime
	harvestCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent workers (default: 4)")
	harvestCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 6h)")
}

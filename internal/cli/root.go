package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "repoharvest",
	Short: "Enrich a CSV of GitHub repositories with metadata and presence checks",
	Long: `RepoHarvest reads a CSV of repository references, fetches each repository's
metadata and file listing via the GitHub API, evaluates a set of presence
checks, and appends one enriched row per repository to an output dataset.

RepoHarvest is resumable: progress is checkpointed to SQLite, so a killed or
rate-limited run picks up where it left off, and each repository appears at
most once in the output no matter how many times the run is restarted.

Examples:
	# Show available commands and global flags
	repoharvest --help

	# Harvest a repository list
	repoharvest harvest --input repos.csv --output enriched.csv

	# List the checks evaluated per repository
	repoharvest checks list

	# Rewrite a dataset keeping the newest record per repository
	repoharvest compact --output enriched.csv

	# Print build info
	repoharvest version

Output:
	By default, commands write human-readable output to stdout.
	The harvest command can also stream NDJSON lifecycle events (see --events).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

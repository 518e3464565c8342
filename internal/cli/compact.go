package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoharvest/internal/flags"
	"repoharvest/internal/report"
)

var compactOutput string

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite a dataset keeping the newest record per repository",
	Long: `Rewrite the output dataset so each repository appears exactly once.

Normal harvests never append the same repository twice, but a dataset touched
by other tooling (or stitched together from multiple files) can carry
duplicates. Compacting keeps the last record per repository and preserves the
order of first appearance. The rewrite is atomic: the original file is only
replaced once the compacted copy is fully written.

Examples:
  repoharvest compact --output enriched.csv
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if compactOutput == "" {
			return fmt.Errorf("--%s must be provided", flags.FlagOutput)
		}
		stats, err := report.Compact(compactOutput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Compacted %s: %d records, kept %d, dropped %d.\n",
			compactOutput, stats.Total, stats.Kept, stats.Dropped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
	compactCmd.Flags().StringVar(&compactOutput, flags.FlagOutput, "", "Dataset CSV to compact (required)")
}

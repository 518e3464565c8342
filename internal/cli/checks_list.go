package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"repoharvest/internal/checks"
)

var checksListQuiet bool
var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List and inspect presence checks",
	Long: `Inspect RepoHarvest checks.

This command group helps you discover which checks exist and what each check
looks for. Checks are evaluated during harvests (see "repoharvest harvest
--help") and each check contributes one column to the output dataset.

Examples:
  # List all available checks
  repoharvest checks list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available checks",
	Long: `List all checks currently registered in this build.

Checks are sorted by name, which is also their column order in the dataset.

Examples:
  repoharvest checks list

Output:
  A vertical list of checks:
    ----------------------------------------
    CHECK: {NAME}
    ----------------------------------------
    {TITLE}
    {DESCRIPTION}
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range checks.List() {
			if checksListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), c.Name())
			} else {
				printCheck(cmd.OutOrStdout(), c)
			}
		}
		return nil
	},
}

var checksShowCmd = &cobra.Command{
	Use:   "show [check-name]",
	Short: "Show details of a specific check",
	Long: `Show details of a specific check by its name.

Examples:
  repoharvest checks show readme
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, c := range checks.List() {
			if c.Name() == args[0] {
				printCheck(cmd.OutOrStdout(), c)
				return nil
			}
		}
		return fmt.Errorf("check not found: %s", args[0])
	},
}

func printCheck(w io.Writer, c checks.Check) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "CHECK: %s\n", c.Name())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, c.Title())
	fmt.Fprintln(w, c.Description())
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(checksCmd)
	checksCmd.AddCommand(checksListCmd)
	checksListCmd.Flags().BoolVarP(&checksListQuiet, "quiet", "q", false, "Only print check names")
	checksCmd.AddCommand(checksShowCmd)
}

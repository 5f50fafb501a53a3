package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/inspect"
	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/internal/watch"
	"github.com/spf13/cobra"
)

var (
	queriesAll          bool
	queriesOutputFormat string
	queriesWait         time.Duration
)

var queriesCmd = &cobra.Command{
	Use:   "queries [QUERY_ID]",
	Short: "List prompts and inputs waiting for the operator",
	Long: `List the session's prompts and inputs, or show one in full.

By default only queries that can still be answered are listed; --all adds
dismissed and expired ones. QUERY_ID may be the 8-character prefix shown in
the table.

Examples:
  aqueduct -u 7 queries
  aqueduct -u 7 queries --all --output=jsonl
  aqueduct -u 7 queries --wait=5m       # block until the recipe asks something
  aqueduct -u 7 queries 0f8fad5b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQueries,
}

func init() {
	queriesCmd.Flags().BoolVarP(&queriesAll, "all", "a", false, "Include dismissed and expired queries")
	queriesCmd.Flags().StringVarP(&queriesOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	queriesCmd.Flags().DurationVar(&queriesWait, "wait", 0, "Wait up to this long for a pending query before listing")
	rootCmd.AddCommand(queriesCmd)
}

func runQueries(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := inspect.ParseOutputFormat(queriesOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", queriesOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	w := cmd.OutOrStdout()
	if len(args) == 1 {
		id, err := resolveQueryArg(ctx, client, args[0])
		if err != nil {
			return err
		}
		if err := inspect.GetQuery(ctx, client, id, w); err != nil {
			return printer.Error("failed to read query", err.Error(), nil)
		}
		return nil
	}

	if queriesWait > 0 {
		if _, err := watch.PollForPendingQuery(ctx, client, queriesWait); err != nil {
			return printer.Error(
				"no pending query",
				fmt.Sprintf("The recipe did not ask anything within %v.", queriesWait),
				nil,
			)
		}
	}

	if err := inspect.ListQueries(ctx, client, queriesAll, format, w); err != nil {
		return printer.Error("failed to list queries", err.Error(), nil)
	}
	return nil
}

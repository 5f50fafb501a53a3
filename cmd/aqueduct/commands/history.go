package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/inspect"
	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	historyOutputFormat string
	historySince        string
	historyUntil        string
)

var historyCmd = &cobra.Command{
	Use:   "history RECORDABLE",
	Short: "Show a recordable's recorded values",
	Long: `Show the samples the recipe recorded for a recordable, oldest first.

Time Filters:
  --since  - samples at or after this time (duration like 1h, or RFC3339)
  --until  - samples at or before this time

Examples:
  aqueduct -u 7 history ph --since=30m
  aqueduct -u 7 history pressure --output=jsonl | jq .value`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Show samples after time (duration or RFC3339)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Show samples before time (duration or RFC3339)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]

	format, err := inspect.ParseOutputFormat(historyOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", historyOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	since, until, err := timespec.ParseRange(historySince, historyUntil, time.Now())
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration (30m, 2h) or an RFC3339 time (2024-03-01T09:00:00Z)"},
		)
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := inspect.History(ctx, client, name, since, until, format, cmd.OutOrStdout()); err != nil {
		if inspect.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("recordable '%s' not found", name),
				"The running recipe has not registered a recordable with this name.",
				[]string{"List what the session has:\n  aqueduct setpoints"},
			)
		}
		return printer.Error("failed to read history", err.Error(), nil)
	}
	return nil
}

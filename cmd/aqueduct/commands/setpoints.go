package commands

import (
	"context"
	"fmt"

	"github.com/aqueductfluidics/aqueduct/internal/inspect"
	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/spf13/cobra"
)

var setpointsOutputFormat string

var setpointsCmd = &cobra.Command{
	Use:     "setpoints [NAME]",
	Aliases: []string{"records"},
	Short:   "List the session's setpoints and recordables",
	Long: `List the session's setpoints and recordables, or show one in full.

List Mode (no NAME):
  default - table with class, name, kind, version, age and value
  jsonl   - one hub record per line

Get Mode (with NAME):
  Prints the setpoint (or, failing that, the recordable) as JSON.

Examples:
  aqueduct -u 7 setpoints
  aqueduct -u 7 setpoints --output=jsonl | jq 'select(.class=="setpoint")'
  aqueduct -u 7 setpoints flow_rate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetpoints,
}

func init() {
	setpointsCmd.Flags().StringVarP(&setpointsOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	rootCmd.AddCommand(setpointsCmd)
}

func runSetpoints(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := inspect.ParseOutputFormat(setpointsOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", setpointsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	w := cmd.OutOrStdout()
	if len(args) == 0 {
		if err := inspect.ListRecords(ctx, client, format, w); err != nil {
			return printer.Error("failed to list records", err.Error(), nil)
		}
		return nil
	}

	name := args[0]
	err = inspect.GetRecord(ctx, client, hub.ClassSetpoint, name, w)
	if inspect.IsNotFound(err) {
		err = inspect.GetRecord(ctx, client, hub.ClassRecordable, name, w)
	}
	if err != nil {
		if inspect.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("no setpoint or recordable named '%s'", name),
				"The running recipe has not registered it, or has removed it.",
				[]string{"List what the session has:\n  aqueduct setpoints"},
			)
		}
		return printer.Error("failed to read record", err.Error(), nil)
	}
	return nil
}

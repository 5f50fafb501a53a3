package commands

import (
	"context"
	"fmt"

	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Change a setpoint of the running recipe",
	Long: `Queue a new value for a setpoint. The recipe applies it on its next
update tick, converting it to the setpoint's kind, and runs its on-change
callback.

VALUE is read as JSON (3.5, true, [1,2], "text"); anything that is not
valid JSON is sent as a string.

Examples:
  aqueduct -u 7 set flow_rate 3.5
  aqueduct -u 7 set operator Ada`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name, value := args[0], parseValueArg(args[1])

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.PushEdit(ctx, name, value); err != nil {
		if hub.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("setpoint '%s' not found", name),
				"Only setpoints the running recipe registered can be changed.",
				[]string{"List the session's setpoints:\n  aqueduct setpoints"},
			)
		}
		return printer.Error("failed to queue setpoint edit", err.Error(), nil)
	}

	printer.Success("Queued %s = %s\n", name, value)
	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/internal/resolver"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve QUERY_ID [VALUE]",
	Short: "Dismiss a prompt or answer an input",
	Long: `Dismiss a prompt, or answer an input with VALUE.

QUERY_ID may be the 8-character prefix shown by 'aqueduct queries'. VALUE
is read as JSON, falling back to a plain string, and must fit the input's
dtype; an answer that does not fit is refused and the input stays pending.

Examples:
  aqueduct -u 7 resolve 0f8fad5b
  aqueduct -u 7 resolve 7c9e6679 L-2024-031`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := resolveQueryArg(ctx, client, args[0])
	if err != nil {
		return err
	}

	q, err := client.GetQuery(ctx, id)
	if err != nil {
		return printer.Error("failed to read query", err.Error(), nil)
	}

	var value json.RawMessage
	if len(args) == 2 {
		value = parseValueArg(args[1])
	}
	if q.Type == hub.QueryInput && value == nil {
		return printer.Error(
			"input needs a value",
			fmt.Sprintf("Query %s asks: %s", id, q.Message),
			[]string{fmt.Sprintf("Answer it:\n  aqueduct resolve %s <value>", id[:8])},
		)
	}
	if q.Expired(time.Now()) {
		printer.Warning("Query %s has expired; the recipe may no longer be waiting\n", id[:8])
	}

	if err := client.ResolveQuery(ctx, id, value); err != nil {
		if errors.Is(err, hub.ErrAlreadyResolved) {
			return printer.Error(
				"query already resolved",
				fmt.Sprintf("Query %s was dismissed before.", id),
				[]string{"List pending queries:\n  aqueduct queries"},
			)
		}
		if errors.Is(err, hub.ErrInvalidAnswer) {
			return printer.ErrorWithContext(
				"answer does not fit the input",
				fmt.Sprintf("Query %s expects a %s value.", id, dtypeName(q.Kind)),
				map[string]string{"Value": string(value)},
				[]string{fmt.Sprintf("Answer again:\n  aqueduct resolve %s <value>", id[:8])},
			)
		}
		return printer.Error("failed to resolve query", err.Error(), nil)
	}

	printer.Success("Resolved %s %s\n", q.Type, id[:8])
	return nil
}

func dtypeName(kind string) string {
	if kind == "" {
		return "JSON"
	}
	return kind
}

// resolveQueryArg turns a QUERY_ID argument into a full id, printing
// not-found and ambiguity errors for the user.
func resolveQueryArg(ctx context.Context, client *hub.Client, arg string) (string, error) {
	id, err := resolver.ResolveQueryID(ctx, client, arg)
	if err == nil {
		return id, nil
	}

	var ambiguous *resolver.AmbiguousError
	switch {
	case resolver.IsNotFoundError(err):
		return "", printer.Error(
			fmt.Sprintf("query '%s' not found", arg),
			"The session has no prompt or input with this ID.",
			[]string{"List queries:\n  aqueduct queries --all"},
		)
	case errors.As(err, &ambiguous):
		return "", printer.Error(
			fmt.Sprintf("ambiguous query ID '%s'", arg),
			resolver.FormatAmbiguousError(ambiguous),
			nil,
		)
	default:
		return "", printer.Error("invalid query ID", err.Error(), nil)
	}
}

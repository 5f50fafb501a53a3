package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every flag back to its default so package-level flag
// variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command with args and returns everything it
// printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if args == nil {
		args = []string{} // nil would make cobra read os.Args
	}
	rootCmd.SetArgs(args)

	prevOut, prevErr := printer.Out, printer.Err
	printer.Out, printer.Err = &out, &out
	defer func() { printer.Out, printer.Err = prevOut, prevErr }()

	err := Execute()
	return out.String(), err
}

// setupHub starts miniredis and returns a client for user "7" plus the
// flags that point the CLI at it.
func setupHub(t *testing.T) (*hub.Client, []string) {
	mr := miniredis.RunT(t)
	client, err := hub.NewClient(&redis.Options{Addr: mr.Addr()}, "7")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, []string{"--redis-url", "redis://" + mr.Addr(), "-u", "7"}
}

func putSetpoint(t *testing.T, client *hub.Client, name, value string) {
	t.Helper()
	require.NoError(t, client.PutRecord(context.Background(), &hub.Record{
		Class: hub.ClassSetpoint, Name: name, Kind: "float", Value: json.RawMessage(value),
		TimestampMs: time.Now().UnixMilli(), Version: 1,
	}))
}

func TestRootCommand(t *testing.T) {
	t.Run("shows help without a subcommand", func(t *testing.T) {
		out, err := runCLI(t)
		assert.NoError(t, err)
		assert.Contains(t, out, "Usage:")
		assert.Contains(t, out, "aqueduct")
	})

	t.Run("rejects unknown flags", func(t *testing.T) {
		_, err := runCLI(t, "--unknown-flag", "value")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown flag")
	})

	t.Run("requires a session", func(t *testing.T) {
		out, err := runCLI(t, "setpoints", "-u", "")
		require.Error(t, err)
		assert.Equal(t, "no session selected", err.Error())
		assert.Contains(t, out, "aqueduct --user <id>")
	})

	t.Run("unreachable redis", func(t *testing.T) {
		_, err := runCLI(t, "setpoints", "-u", "7", "--redis-url", "redis://127.0.0.1:1")
		require.Error(t, err)
		assert.Equal(t, "Redis connection failed", err.Error())
	})
}

func TestSetpointsCommand(t *testing.T) {
	client, flags := setupHub(t)
	putSetpoint(t, client, "flow_rate", "2.5")

	t.Run("list", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"setpoints"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "flow_rate")
		assert.Contains(t, out, "1 record found")
	})

	t.Run("get", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"setpoints", "flow_rate"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "flow_rate"`)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"setpoints", "nope"}, flags...)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no setpoint or recordable named 'nope'")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"setpoints", "-o", "xml"}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "invalid output format", err.Error())
	})
}

func TestSetCommand(t *testing.T) {
	client, flags := setupHub(t)
	putSetpoint(t, client, "flow_rate", "2.5")
	ctx := context.Background()

	out, err := runCLI(t, append([]string{"set", "flow_rate", "3.5"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Queued flow_rate = 3.5")

	_, err = runCLI(t, append([]string{"set", "flow_rate", "fast"}, flags...)...)
	require.NoError(t, err)

	edits, err := client.DrainEdits(ctx)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.JSONEq(t, "3.5", string(edits[0].Value))
	assert.JSONEq(t, `"fast"`, string(edits[1].Value))

	t.Run("unknown setpoint", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"set", "ghost", "1"}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "setpoint 'ghost' not found", err.Error())
	})
}

func TestQueriesAndResolveCommands(t *testing.T) {
	client, flags := setupHub(t)
	ctx := context.Background()

	prompt := &hub.Query{ID: uuid.New().String(), Type: hub.QueryPrompt, Message: "Connect tubing", StartMs: time.Now().UnixMilli()}
	input := &hub.Query{ID: uuid.New().String(), Type: hub.QueryInput, Message: "Lot number?", InputType: "text_input",
		StartMs: time.Now().UnixMilli() + 1}
	require.NoError(t, client.PutQuery(ctx, prompt))
	require.NoError(t, client.PutQuery(ctx, input))

	t.Run("list pending", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"queries"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, prompt.ID[:8])
		assert.Contains(t, out, "Lot number?")
		assert.Contains(t, out, "2 queries found")
	})

	t.Run("get by prefix", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"queries", input.ID[:8]}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, `"input_type": "text_input"`)
	})

	t.Run("input needs a value", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"resolve", input.ID[:8]}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "input needs a value", err.Error())
	})

	t.Run("resolve prompt and input", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"resolve", prompt.ID[:8]}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Resolved prompt")

		_, err = runCLI(t, append([]string{"resolve", input.ID, "L-031"}, flags...)...)
		require.NoError(t, err)

		resolutions, err := client.DrainResolutions(ctx)
		require.NoError(t, err)
		require.Len(t, resolutions, 2)
		assert.Equal(t, input.ID, resolutions[1].QueryID)
		assert.JSONEq(t, `"L-031"`, string(resolutions[1].Value))
	})

	t.Run("already resolved", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"resolve", prompt.ID}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "query already resolved", err.Error())
	})

	t.Run("nothing pending after resolution", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"queries"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "No queries found")

		out, err = runCLI(t, append([]string{"queries", "--all", "-o", "jsonl"}, flags...)...)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"resolve", "ffffffff"}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "query 'ffffffff' not found", err.Error())
	})
}

func TestResolveRefusesMismatchedAnswer(t *testing.T) {
	client, flags := setupHub(t)
	ctx := context.Background()

	input := &hub.Query{ID: uuid.New().String(), Type: hub.QueryInput, Message: "Batch size?",
		InputType: "text_input", Kind: "int", StartMs: time.Now().UnixMilli()}
	require.NoError(t, client.PutQuery(ctx, input))

	_, err := runCLI(t, append([]string{"resolve", input.ID[:8], "abc"}, flags...)...)
	require.Error(t, err)
	assert.Equal(t, "answer does not fit the input", err.Error())

	got, err := client.GetQuery(ctx, input.ID)
	require.NoError(t, err)
	assert.False(t, got.Dismissed)

	_, err = runCLI(t, append([]string{"resolve", input.ID[:8], "42"}, flags...)...)
	require.NoError(t, err)

	resolutions, err := client.DrainResolutions(ctx)
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	assert.JSONEq(t, "42", string(resolutions[0].Value))
}

func TestHistoryCommand(t *testing.T) {
	client, flags := setupHub(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, client.PutRecord(ctx, &hub.Record{
		Class: hub.ClassRecordable, Name: "ph", Kind: "float", Value: json.RawMessage("7.2"),
		TimestampMs: now.UnixMilli(), Version: 3,
	}))
	require.NoError(t, client.AppendSamples(ctx, "ph", []hub.Sample{
		{Value: json.RawMessage("7.0"), TimestampMs: now.Add(-2 * time.Hour).UnixMilli(), Version: 1},
		{Value: json.RawMessage("7.1"), TimestampMs: now.Add(-10 * time.Minute).UnixMilli(), Version: 2},
		{Value: json.RawMessage("7.2"), TimestampMs: now.UnixMilli(), Version: 3},
	}))

	t.Run("since", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"history", "ph", "--since", "1h"}, flags...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "2 samples found")
	})

	t.Run("bad time", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"history", "ph", "--since", "yesterday-ish"}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "invalid time filter", err.Error())
	})

	t.Run("unknown recordable", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"history", "temp"}, flags...)...)
		require.Error(t, err)
		assert.Equal(t, "recordable 'temp' not found", err.Error())
	})
}

func TestWatchCommand_InvalidFormat(t *testing.T) {
	_, err := runCLI(t, "watch", "-u", "7", "-o", "yaml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
}

func TestParseValueArg(t *testing.T) {
	assert.JSONEq(t, "3.5", string(parseValueArg("3.5")))
	assert.JSONEq(t, "[1,2]", string(parseValueArg("[1,2]")))
	assert.JSONEq(t, `"Ada"`, string(parseValueArg("Ada")))
	assert.JSONEq(t, `"two words"`, string(parseValueArg("two words")))
}

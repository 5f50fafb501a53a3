package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aqueductfluidics/aqueduct/internal/printer"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/redis/go-redis/v9"
)

// connect opens a hub client for the selected session and checks Redis is
// reachable.
func connect(ctx context.Context) (*hub.Client, error) {
	if userID == "" {
		return nil, printer.Error(
			"no session selected",
			"Every command works on one recipe session.",
			[]string{
				"Pass the session user id:\n  aqueduct --user <id> ...",
				"Or export it:\n  export AQUEDUCT_USER_ID=<id>",
			},
		)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid Redis URL",
			err.Error(),
			map[string]string{"Redis": redisURL},
			[]string{"Use the form redis://host:port[/db]"},
		)
	}

	client, err := hub.NewClient(redisOpts, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create hub client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to the hub at %s", redisURL),
			map[string]string{"Redis": redisURL, "User": userID, "Error": err.Error()},
			[]string{"Check the hub is running and --redis-url points at its Redis"},
		)
	}
	return client, nil
}

// parseValueArg reads a command-line value as JSON, falling back to a plain
// string so `set operator Ada` works without quoting.
func parseValueArg(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	data, _ := json.Marshal(s)
	return data
}

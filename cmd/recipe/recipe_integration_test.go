//go:build integration

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/aqueductfluidics/aqueduct/internal/config"
	"github.com/aqueductfluidics/aqueduct/internal/runner"
	"github.com/aqueductfluidics/aqueduct/internal/watch"
	"github.com/aqueductfluidics/aqueduct/pkg/hub"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// TestScaffoldRecipe drives the scaffold recipe from the operator side: it
// answers the prompt and the input, steers the setpoint and checks the
// recorded history.
func TestScaffoldRecipe(t *testing.T) {
	redisURL := setupRedis(t)
	scaffoldSteps, scaffoldInterval = 10, 50*time.Millisecond

	cfg := config.Default()
	cfg.Hub.RedisURL = redisURL
	cfg.Session.UpdateInterval = 50 * time.Millisecond
	cfg.Session.PromptPollInterval = 20 * time.Millisecond
	cfg.Logs.Dir = t.TempDir()
	cfg.Logs.SaveDir = filepath.Join(cfg.Logs.Dir, "saved")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx, runner.Options{
			Env:        &config.RunnerConfig{UserID: "it-user", PID: 1},
			Config:     cfg,
			HealthAddr: "127.0.0.1:0",
			Out:        io.Discard,
			Err:        io.Discard,
			Logger:     log.New(io.Discard, "", 0),
		}, scaffold)
	}()

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	operator, err := hub.NewClient(opts, "it-user")
	require.NoError(t, err)
	defer operator.Close()

	// Operator confirms the prompt, then answers the lot number.
	prompt, err := watch.PollForPendingQuery(ctx, operator, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, hub.QueryPrompt, prompt.Type)
	require.NoError(t, operator.ResolveQuery(ctx, prompt.ID, nil))

	var input *hub.Query
	require.Eventually(t, func() bool {
		q, err := watch.PollForPendingQuery(ctx, operator, time.Second)
		if err != nil || q.Type != hub.QueryInput {
			return false
		}
		input = q
		return true
	}, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, "str", input.Kind)
	require.NoError(t, operator.ResolveQuery(ctx, input.ID, json.RawMessage(`"LOT-7"`)))

	require.NoError(t, operator.PushEdit(ctx, "target_ph", json.RawMessage("6.5")))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("recipe did not finish")
	}

	target, err := operator.GetRecord(ctx, hub.ClassSetpoint, "target_ph")
	require.NoError(t, err)
	assert.JSONEq(t, "6.5", string(target.Value))

	samples, err := operator.GetSamples(ctx, "ph", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, samples, scaffoldSteps+1, "initial value plus one reading per step")

	matches, err := filepath.Glob(filepath.Join(cfg.Logs.SaveDir, "scaffold_*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

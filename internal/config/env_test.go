package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunnerConfig(t *testing.T) {
	t.Run("all variables set", func(t *testing.T) {
		t.Setenv("AQUEDUCT_USER_ID", "7")
		t.Setenv("AQUEDUCT_PID", "4242")
		t.Setenv("REDIS_URL", "redis://redis:6379")
		t.Setenv("AQUEDUCT_CONFIG", "/etc/aqueduct.yml")

		cfg, err := LoadRunnerConfig()
		require.NoError(t, err)
		assert.Equal(t, "7", cfg.UserID)
		assert.Equal(t, 4242, cfg.PID)
		assert.Equal(t, "redis://redis:6379", cfg.RedisURL)
		assert.Equal(t, "/etc/aqueduct.yml", cfg.ConfigPath)
	})

	t.Run("pid defaults to process id", func(t *testing.T) {
		t.Setenv("AQUEDUCT_USER_ID", "7")
		t.Setenv("AQUEDUCT_PID", "")

		cfg, err := LoadRunnerConfig()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), cfg.PID)
	})

	t.Run("missing user id", func(t *testing.T) {
		t.Setenv("AQUEDUCT_USER_ID", "")

		_, err := LoadRunnerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AQUEDUCT_USER_ID environment variable is required")
	})

	t.Run("malformed pid", func(t *testing.T) {
		t.Setenv("AQUEDUCT_USER_ID", "7")
		t.Setenv("AQUEDUCT_PID", "abc")

		_, err := LoadRunnerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse AQUEDUCT_PID")
	})
}

func TestRunnerConfigResolve(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg := &RunnerConfig{UserID: "7", PID: 1}
		file, err := cfg.Resolve()
		require.NoError(t, err)
		assert.Equal(t, DefaultRedisURL, file.Hub.RedisURL)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, "version: \"1.0\"\nhub:\n  redis_url: redis://file:6379\n  serial_number: SN1\n")
		cfg := &RunnerConfig{UserID: "7", PID: 1, RedisURL: "redis://env:6379", ConfigPath: path}

		file, err := cfg.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "redis://env:6379", file.Hub.RedisURL)
		assert.Equal(t, "SN1", file.Hub.SerialNumber)
	})

	t.Run("bad file", func(t *testing.T) {
		cfg := &RunnerConfig{UserID: "7", PID: 1, ConfigPath: "/nonexistent/aqueduct.yml"}
		_, err := cfg.Resolve()
		assert.Error(t, err)
	})
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

// RunnerConfig holds the recipe runner's process configuration loaded from
// environment variables. It is validated at startup so a misconfigured
// runner fails before touching the hub.
type RunnerConfig struct {
	// UserID is the session user id (from AQUEDUCT_USER_ID)
	UserID string

	// PID is the recipe process id reported to the hub (from AQUEDUCT_PID,
	// defaults to os.Getpid())
	PID int

	// RedisURL overrides hub.redis_url (from REDIS_URL)
	RedisURL string

	// ConfigPath is the aqueduct.yml location (from AQUEDUCT_CONFIG). Empty
	// means built-in defaults.
	ConfigPath string
}

// LoadRunnerConfig reads and validates the runner environment.
func LoadRunnerConfig() (*RunnerConfig, error) {
	cfg := &RunnerConfig{
		UserID:     os.Getenv("AQUEDUCT_USER_ID"),
		PID:        os.Getpid(),
		RedisURL:   os.Getenv("REDIS_URL"),
		ConfigPath: os.Getenv("AQUEDUCT_CONFIG"),
	}

	if pid := os.Getenv("AQUEDUCT_PID"); pid != "" {
		n, err := strconv.Atoi(pid)
		if err != nil {
			return nil, fmt.Errorf("failed to parse AQUEDUCT_PID as integer: %w", err)
		}
		cfg.PID = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *RunnerConfig) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("AQUEDUCT_USER_ID environment variable is required")
	}
	if c.PID <= 0 {
		return fmt.Errorf("AQUEDUCT_PID must be positive, got %d", c.PID)
	}
	return nil
}

// Resolve loads the file configuration named by ConfigPath (or the
// defaults) and applies the environment overrides on top.
func (c *RunnerConfig) Resolve() (*AqueductConfig, error) {
	var (
		file *AqueductConfig
		err  error
	)
	if c.ConfigPath == "" {
		file = Default()
	} else if file, err = Load(c.ConfigPath); err != nil {
		return nil, err
	}

	if c.RedisURL != "" {
		file.Hub.RedisURL = c.RedisURL
	}
	return file, nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/aqueductfluidics/aqueduct/pkg/aqueduct"
	"gopkg.in/yaml.v3"
)

// AqueductConfig represents the top-level aqueduct.yml configuration
type AqueductConfig struct {
	Version       string         `yaml:"version"`
	Hub           *HubConfig     `yaml:"hub,omitempty"`
	LabModeUserID string         `yaml:"lab_mode_user_id,omitempty"` // Session user id that marks a lab-mode run
	Session       *SessionConfig `yaml:"session,omitempty"`
	Logs          *LogsConfig    `yaml:"logs,omitempty"`
	Health        *HealthConfig  `yaml:"health,omitempty"`
}

// HubConfig describes the hub the recipe reports to
type HubConfig struct {
	RedisURL     string `yaml:"redis_url,omitempty"`
	SerialNumber string `yaml:"serial_number,omitempty"`
}

// SessionConfig tunes the update loop and query handshake
type SessionConfig struct {
	UpdateInterval     time.Duration `yaml:"update_interval,omitempty"`      // Default: 1s
	PromptPollInterval time.Duration `yaml:"prompt_poll_interval,omitempty"` // Default: 500ms
	PushTimeout        time.Duration `yaml:"push_timeout,omitempty"`         // Default: 2s
	SampleBuffer       int           `yaml:"sample_buffer,omitempty"`        // Default: 1024
}

// LogsConfig says where session logs are written and saved
type LogsConfig struct {
	Dir     string `yaml:"dir,omitempty"`      // Default: ./logs
	SaveDir string `yaml:"save_dir,omitempty"` // Default: same as dir
}

// HealthConfig configures the runner's /healthz and /metrics server
type HealthConfig struct {
	Port int `yaml:"port,omitempty"` // Default: 8080
}

const (
	DefaultRedisURL   = "redis://localhost:6379"
	DefaultLogDir     = "logs"
	DefaultHealthPort = 8080
)

// Default returns a configuration with every default applied.
func Default() *AqueductConfig {
	c := &AqueductConfig{Version: "1.0"}
	// Defaults never fail validation.
	_ = c.Validate()
	return c
}

// Validate checks the configuration and fills in defaults for missing
// sections
func (c *AqueductConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Hub == nil {
		c.Hub = &HubConfig{}
	}
	if c.Hub.RedisURL == "" {
		c.Hub.RedisURL = DefaultRedisURL
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}

	if c.Logs == nil {
		c.Logs = &LogsConfig{}
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = DefaultLogDir
	}
	if c.Logs.SaveDir == "" {
		c.Logs.SaveDir = c.Logs.Dir
	}

	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

// Validate rejects negative values and applies the session defaults
func (s *SessionConfig) Validate() error {
	if s.UpdateInterval < 0 {
		return fmt.Errorf("session.update_interval must be positive, got %v", s.UpdateInterval)
	}
	if s.PromptPollInterval < 0 {
		return fmt.Errorf("session.prompt_poll_interval must be positive, got %v", s.PromptPollInterval)
	}
	if s.PushTimeout < 0 {
		return fmt.Errorf("session.push_timeout must be positive, got %v", s.PushTimeout)
	}
	if s.SampleBuffer < 0 {
		return fmt.Errorf("session.sample_buffer must be >= 0, got %d", s.SampleBuffer)
	}

	if s.UpdateInterval == 0 {
		s.UpdateInterval = aqueduct.DefaultUpdateInterval
	}
	if s.PromptPollInterval == 0 {
		s.PromptPollInterval = aqueduct.DefaultPollInterval
	}
	if s.PushTimeout == 0 {
		s.PushTimeout = aqueduct.DefaultPushTimeout
	}
	if s.SampleBuffer == 0 {
		s.SampleBuffer = aqueduct.DefaultSampleBuffer
	}
	return nil
}

// Load reads and validates aqueduct.yml from the specified path
func Load(path string) (*AqueductConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config AqueductConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

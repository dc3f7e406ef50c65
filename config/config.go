package config

import (
	"fmt"
	"time"
)

// Config is the complete AgentMesh configuration.
type Config struct {
	// Log configures the process logger.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Agents seeds the registry at startup. Lists are file-only; they have
	// no environment override.
	Agents []AgentConfig `yaml:"agents" env:"-"`

	// Breaker is the shared tuning for every per-endpoint circuit breaker.
	Breaker BreakerConfig `yaml:"breaker" env:"BREAKER"`

	// Coordinator tunes workflow execution.
	Coordinator CoordinatorConfig `yaml:"coordinator" env:"COORDINATOR"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// AgentConfig declares one agent to register at startup.
type AgentConfig struct {
	ID           string            `yaml:"id"`
	Endpoint     string            `yaml:"endpoint"`
	Capabilities []string          `yaml:"capabilities"`
	Priority     int               `yaml:"priority"`

	// Disabled keeps the agent registered but out of routing.
	Disabled bool `yaml:"disabled"`

	Metadata map[string]string `yaml:"metadata"`
}

// BreakerConfig mirrors breaker.Config in YAML form.
type BreakerConfig struct {
	FailureThreshold  int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	RecoveryTimeout   time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	SuccessThreshold  int           `yaml:"success_threshold" env:"SUCCESS_THRESHOLD"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	HalfOpenMaxProbes int           `yaml:"half_open_max_probes" env:"HALF_OPEN_MAX_PROBES"`
}

// CoordinatorConfig tunes workflow execution.
type CoordinatorConfig struct {
	// MaxConcurrency caps in-flight agent calls in a parallel run. Zero
	// means unbounded.
	MaxConcurrency int64 `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	// WorkflowTimeout is the default run deadline. Zero means none.
	WorkflowTimeout time.Duration `yaml:"workflow_timeout" env:"WORKFLOW_TIMEOUT"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:         DefaultLogConfig(),
		Breaker:     DefaultBreakerConfig(),
		Coordinator: DefaultCoordinatorConfig(),
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		RequestTimeout:   30 * time.Second,
	}
}

// DefaultCoordinatorConfig returns the default coordinator tuning.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxConcurrency: 8,
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	if c.Breaker.FailureThreshold < 0 {
		return fmt.Errorf("breaker failure_threshold must not be negative")
	}
	if c.Breaker.RecoveryTimeout < 0 {
		return fmt.Errorf("breaker recovery_timeout must not be negative")
	}
	if c.Coordinator.MaxConcurrency < 0 {
		return fmt.Errorf("coordinator max_concurrency must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("duplicate agent id: %s", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

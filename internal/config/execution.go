package config

import (
	"fmt"
	"time"
)

// ExecutionConfig bounds script runs started from the CLI.
type ExecutionConfig struct {
	// Timeout caps one script run, e.g. "30s". Empty or "0" means no limit.
	Timeout string `yaml:"timeout"`
}

// GetScriptTimeout returns the run timeout, 0 for none.
func (c *Config) GetScriptTimeout() time.Duration {
	if c.Execution.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func (e ExecutionConfig) validate() error {
	if e.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return fmt.Errorf("invalid execution.timeout %q: %w", e.Timeout, err)
	}
	if d < 0 {
		return fmt.Errorf("execution.timeout must not be negative")
	}
	return nil
}

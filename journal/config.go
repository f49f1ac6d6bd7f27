package journal

import (
	"fmt"
	"time"
)

// Config holds journal database configuration.
type Config struct {
	// Enabled controls whether invocations are journaled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// DSN is the SQLite database path, or ":memory:".
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// MaxRetries is the number of open attempts before giving up.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// SlowQueryThreshold is the duration above which queries are logged as slow (e.g. "200ms").
	SlowQueryThreshold string `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold"`

	// KeepLogText stores the captured nested log with each entry.
	KeepLogText bool `mapstructure:"keep_log_text" yaml:"keep_log_text"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "etlkit-journal.db"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.SlowQueryThreshold == "" {
		c.SlowQueryThreshold = "200ms"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return fmt.Errorf("journal dsn is required")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be > 0")
	}
	if _, err := time.ParseDuration(c.SlowQueryThreshold); err != nil {
		return fmt.Errorf("invalid slow_query_threshold %q: %w", c.SlowQueryThreshold, err)
	}
	return nil
}

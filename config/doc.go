// Package config loads the configuration of a batch executor process.
//
// Values come from a YAML file found in the standard locations (or given
// explicitly), an optional .env file, and the process environment, which
// overrides nested keys by their underscore-joined path (JOURNAL_DSN sets
// journal.dsn).
//
//	var cfg config.ServiceConfig
//	if err := config.LoadConfig("batchexec", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config

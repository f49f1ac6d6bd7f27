package config

import (
	"fmt"

	"github.com/kbukum/etlkit/executor"
	"github.com/kbukum/etlkit/journal"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/observability"
)

// ServiceConfig is the configuration of a batch executor process.
//
//	name: order-batches
//	pipeline_dirs: [./pipelines]
//	variables:
//	  REGION: EU
//	executors:
//	  - name: per-customer
//	    pipeline: load-customer
//	    grouping: {field: custID}
//	    parameters:
//	      - {variable: CUST, field: custID}
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Journal       journal.Config       `yaml:"journal" mapstructure:"journal"`

	// PipelineDirs are searched for nested pipeline definitions.
	PipelineDirs []string `yaml:"pipeline_dirs" mapstructure:"pipeline_dirs"`
	// Variables seed the root scope on top of the process environment.
	Variables map[string]string `yaml:"variables" mapstructure:"variables"`
	Executors []executor.Config `yaml:"executors" mapstructure:"executors"`
}

// ApplyDefaults applies default values to every section.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if len(c.PipelineDirs) == 0 {
		c.PipelineDirs = []string{"./pipelines"}
	}
	c.Logging.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Journal.ApplyDefaults()
	for i := range c.Executors {
		c.Executors[i].ApplyDefaults()
	}
}

// Validate validates every section. Executor configs are checked here so a
// bad file fails before any input is read.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config.environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("config.journal: %w", err)
	}
	if len(c.Executors) == 0 {
		return fmt.Errorf("config.executors: at least one executor is required")
	}
	seen := make(map[string]bool, len(c.Executors))
	for i := range c.Executors {
		ex := &c.Executors[i]
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("config.executors[%d]: %w", i, err)
		}
		if seen[ex.Name] {
			return fmt.Errorf("config.executors[%d]: duplicate name %q", i, ex.Name)
		}
		seen[ex.Name] = true
	}
	return nil
}

// Executor returns the executor config with the given name.
func (c *ServiceConfig) Executor(name string) (executor.Config, bool) {
	for _, ex := range c.Executors {
		if ex.Name == name {
			return ex, true
		}
	}
	return executor.Config{}, false
}

package executor

import (
	"github.com/kbukum/etlkit/distribute"
	"github.com/kbukum/etlkit/grouping"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/params"
	"github.com/kbukum/etlkit/validation"
)

// Config configures one batch step.
type Config struct {
	// Name identifies the step in logs, metrics and the journal.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Pipeline is the name of the nested pipeline, resolved through the loader.
	// It may reference ${VARIABLES}.
	Pipeline string `yaml:"pipeline" mapstructure:"pipeline" validate:"required"`

	Grouping grouping.Config     `yaml:"grouping" mapstructure:"grouping"`
	Params   params.Config       `yaml:",inline" mapstructure:",squash"`
	Outputs  distribute.Bindings `yaml:"outputs" mapstructure:"outputs"`

	// LogLimit bounds the captured log of each invocation, in bytes.
	LogLimit int `yaml:"log_limit" mapstructure:"log_limit" validate:"min=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLimit == 0 {
		c.LogLimit = logger.DefaultCaptureLimit
	}
	c.Outputs.ApplyDefaults()
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validation.New().Merge(validation.Validate(c))

	names := make([]string, len(c.Params.Declarations))
	for i, d := range c.Params.Declarations {
		names[i] = d.Variable
	}
	v.Unique("parameters.variable", names)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

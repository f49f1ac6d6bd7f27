package journal

import (
	"context"
	"fmt"

	"github.com/kbukum/etlkit/component"
	"github.com/kbukum/etlkit/logger"
)

// Component wraps a Journal and implements component.Component.
type Component struct {
	cfg     Config
	log     *logger.Logger
	journal *Journal
}

// NewComponent creates a journal component for the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log}
}

var _ component.Component = (*Component)(nil)

// Journal returns the opened journal, or nil before Start or when disabled.
func (c *Component) Journal() *Journal { return c.journal }

// Name returns the component name.
func (c *Component) Name() string { return "journal" }

// Start opens the journal when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	j, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("journal start: %w", err)
	}
	c.journal = j
	return nil
}

// Stop closes the journal.
func (c *Component) Stop(_ context.Context) error {
	if c.journal == nil {
		return nil
	}
	return c.journal.Close()
}

// Health reports whether the journal database answers.
func (c *Component) Health(ctx context.Context) component.Health {
	if !c.cfg.Enabled {
		return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	}
	if c.journal == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "journal not opened"}
	}
	if err := c.journal.Ping(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns summary info for the startup display.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = "sqlite " + c.cfg.DSN
	}
	return component.Description{Name: "Invocation journal", Type: "database", Details: details}
}

package executor

import (
	"context"
	"fmt"

	"github.com/kbukum/etlkit/component"
	"github.com/kbukum/etlkit/errors"
)

var _ component.Component = (*Executor)(nil)

// Name returns the step name.
func (e *Executor) Name() string { return e.cfg.Name }

// Start checks that the executor can still accept rows.
func (e *Executor) Start(context.Context) error {
	if e.stopped.Load() {
		return errors.Stopped(e.cfg.Name)
	}
	return nil
}

// Stop stops the running nested pipeline, recursively, and refuses every
// later row and invocation.
func (e *Executor) Stop(context.Context) error {
	if e.stopped.Swap(true) {
		return nil
	}
	e.runner.Stop()
	e.log.Info("Executor stopped", map[string]interface{}{"invocations": e.invocations.Load()})
	return nil
}

// Stopped reports whether Stop was called.
func (e *Executor) Stopped() bool { return e.stopped.Load() }

// Health is degraded once an invocation failed and unhealthy after Stop.
func (e *Executor) Health(context.Context) component.Health {
	h := component.Health{Name: e.Name(), Status: component.StatusHealthy, Message: e.State().String()}
	switch {
	case e.stopped.Load():
		h.Status = component.StatusUnhealthy
		h.Message = "stopped"
	case e.errors.Load() > 0:
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d errors in %d invocations", e.errors.Load(), e.invocations.Load())
	}
	return h
}

// Describe returns summary info for the startup display.
func (e *Executor) Describe() component.Description {
	return component.Description{
		Name:    e.cfg.Name,
		Type:    "executor",
		Details: fmt.Sprintf("pipeline=%s grouping=%s", e.def.Name, e.acc.Kind()),
	}
}

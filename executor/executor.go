package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/etlkit/dag"
	"github.com/kbukum/etlkit/distribute"
	"github.com/kbukum/etlkit/errors"
	"github.com/kbukum/etlkit/grouping"
	"github.com/kbukum/etlkit/journal"
	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/observability"
	"github.com/kbukum/etlkit/params"
	"github.com/kbukum/etlkit/pipeline"
	"github.com/kbukum/etlkit/row"
	"github.com/kbukum/etlkit/subpipeline"
	"github.com/kbukum/etlkit/variables"
)

// Journal receives one entry per invocation.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// ChannelResolver is implemented by emitters that can tell whether a channel
// has a consumer. Bound channels are checked against it in New.
type ChannelResolver interface {
	HasChannel(name string) bool
}

// Deps are the collaborators of an Executor. Only Loader or Pipeline, and
// Emitter when a channel is bound, are required.
type Deps struct {
	Engine   *dag.Engine
	Registry *dag.Registry
	Loader   dag.PipelineLoader
	// Pipeline overrides loading Config.Pipeline through Loader.
	Pipeline *dag.Pipeline
	Emitter  row.Emitter
	// Vars is the step's variable scope.
	Vars *variables.Scope
	Log  *logger.Logger
	Args []string

	Metrics *observability.Metrics
	Journal Journal
	// Controller receives safe-stop requests raised by nested pipelines.
	Controller subpipeline.Controller
	Active     *subpipeline.ActiveRegistry
	Clock      func() time.Time
}

// Executor is the batch step. ProcessRow and Finish must be called from one
// goroutine; Stop, Health and the counters may be called from any.
type Executor struct {
	cfg     Config
	log     *logger.Logger
	vars    *variables.Scope
	def     *dag.Pipeline
	acc     *grouping.Accumulator
	runner  *subpipeline.Runner
	dist    *distribute.Distributor
	parent  *subpipeline.ParentContext
	metrics *observability.Metrics
	journal Journal
	ctrl    subpipeline.Controller

	meta    *row.Meta
	fields  []string
	lastRow row.Row

	state       atomic.Int32
	stopped     atomic.Bool
	safeStop    atomic.Bool
	errors      atomic.Int64
	invocations atomic.Int64
}

// New validates cfg, loads the nested pipeline, selects the grouping policy
// and computes the output channel schemas. Every failure is a configuration
// error.
func New(cfg Config, deps Deps) (*Executor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Configuration("executor", err.Error()).WithCause(err)
	}

	vars := deps.Vars
	if vars == nil {
		vars = variables.NewScope()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("executor").WithFields(logger.Fields(logger.FieldStep, cfg.Name))

	def := deps.Pipeline
	if def == nil {
		if deps.Loader == nil {
			return nil, errors.Configuration("pipeline", "no pipeline loader configured")
		}
		loaded, err := deps.Loader.Load(vars.Substitute(cfg.Pipeline))
		if err != nil {
			return nil, errors.Configuration("pipeline", err.Error()).WithCause(err)
		}
		def = loaded
	}

	var accOpts []grouping.Option
	if deps.Clock != nil {
		accOpts = append(accOpts, grouping.WithClock(deps.Clock))
	}
	acc, err := grouping.New(cfg.Grouping, vars, accOpts...)
	if err != nil {
		return nil, err
	}

	dist, err := distribute.New(cfg.Outputs, deps.Emitter, distribute.WithOrigin(cfg.Name))
	if err != nil {
		return nil, err
	}
	if resolver, ok := deps.Emitter.(ChannelResolver); ok {
		for _, ch := range cfg.Outputs.Channels() {
			if !resolver.HasChannel(ch) {
				return nil, errors.Configuration("outputs", "channel "+ch+" has no consumer")
			}
		}
	}

	e := &Executor{
		cfg:     cfg,
		log:     log,
		vars:    vars,
		def:     def,
		acc:     acc,
		dist:    dist,
		metrics: deps.Metrics,
		journal: deps.Journal,
		ctrl:    deps.Controller,
		runner: subpipeline.New(deps.Engine, deps.Registry, deps.Loader, cfg.Params,
			subpipeline.WithLogLimit(cfg.LogLimit)),
	}
	active := deps.Active
	if active == nil {
		active = subpipeline.NewActiveRegistry()
	}
	e.parent = &subpipeline.ParentContext{
		StepName:   cfg.Name,
		Vars:       vars,
		Log:        log,
		Args:       deps.Args,
		Active:     active,
		Controller: e,
	}

	log.Debug("Executor configured", logger.Fields(
		logger.FieldPipeline, def.Name,
		"grouping", acc.Kind().String(),
		"parameters", len(cfg.Params.Declarations),
	))
	return e, nil
}

// State returns the current lifecycle state.
func (e *Executor) State() State { return State(e.state.Load()) }

func (e *Executor) setState(s State) { e.state.Store(int32(s)) }

// Errors returns the number of errors reported by failed invocations so far.
func (e *Executor) Errors() int64 { return e.errors.Load() }

// Invocations returns the number of nested runs so far.
func (e *Executor) Invocations() int64 { return e.invocations.Load() }

// Pipeline returns the nested pipeline definition.
func (e *Executor) Pipeline() *dag.Pipeline { return e.def }

// ProcessRow handles one input row: passthrough, grouping decision and, when
// a group is complete, one synchronous nested run.
func (e *Executor) ProcessRow(ctx context.Context, meta *row.Meta, r row.Row) error {
	if e.stopped.Load() {
		return errors.Stopped(e.cfg.Name)
	}
	switch e.State() {
	case Draining, Closed:
		return errors.Stopped(e.cfg.Name)
	case Idle:
		if err := e.bind(meta); err != nil {
			return err
		}
		e.setState(Accumulating)
	}

	if err := e.dist.Passthrough(ctx, meta, r); err != nil {
		return err
	}

	decision, err := e.acc.Offer(r)
	if err != nil {
		return err
	}

	switch decision {
	case grouping.FlushBeforeAppend:
		err = e.invoke(ctx)
		e.acc.Append(r)
	case grouping.FlushAfterAppend:
		e.acc.Append(r)
		err = e.invoke(ctx)
	default:
		e.acc.Append(r)
	}
	e.lastRow = r
	e.state.CompareAndSwap(int32(Invoking), int32(Accumulating))
	return err
}

// Finish drains the buffer: a non-empty group gets one final run, then the
// executor is closed.
func (e *Executor) Finish(ctx context.Context) error {
	if e.State() == Closed {
		return nil
	}
	e.setState(Draining)
	defer e.setState(Closed)

	if e.acc.Len() == 0 {
		e.acc.Flush()
		return nil
	}
	if e.stopped.Load() {
		e.log.Warn("Discarding buffered rows after stop", logger.Fields(logger.FieldGroupSize, e.acc.Len()))
		e.acc.Flush()
		return nil
	}
	return e.invoke(ctx)
}

// Run pulls every row from src, then finishes. It stops pulling early when
// the executor is stopped or a nested pipeline requested a safe stop.
func (e *Executor) Run(ctx context.Context, meta *row.Meta, src *pipeline.Pipeline[row.Row]) error {
	live := pipeline.TakeUntil(src, e.halted)
	err := pipeline.ForEach(ctx, live, func(ctx context.Context, r row.Row) error {
		return e.ProcessRow(ctx, meta, r)
	})
	if err != nil {
		return err
	}
	if e.safeStop.Load() {
		e.log.Info("Safe stop requested, no further rows are read")
	}
	return e.Finish(ctx)
}

func (e *Executor) halted() bool {
	return e.stopped.Load() || e.safeStop.Load()
}

// RequestSafeStop stops reading input after the current group and forwards
// the request to the parent controller.
func (e *Executor) RequestSafeStop() {
	e.safeStop.Store(true)
	if e.ctrl != nil {
		e.ctrl.RequestSafeStop()
	}
}

// SafeStopRequested reports whether a nested pipeline asked for a safe stop.
func (e *Executor) SafeStopRequested() bool { return e.safeStop.Load() }

func (e *Executor) bind(meta *row.Meta) error {
	if err := e.acc.Bind(meta); err != nil {
		return errors.Configuration("grouping.field", err.Error()).WithCause(err)
	}
	for _, f := range e.cfg.Params.Fields() {
		if meta.IndexOf(f) < 0 {
			cause := errors.UnresolvedField("parameter", f)
			return errors.Configuration("parameters.field", cause.Error()).WithCause(cause)
		}
	}
	e.meta = meta.Clone()
	e.fields = meta.Names()
	return nil
}

// invoke runs the nested pipeline over the buffered group, distributes the
// outcome and starts a new group. A failed run is logged and counted; only
// distribution errors are returned.
func (e *Executor) invoke(ctx context.Context) error {
	group := e.acc.Group()
	if len(group) == 0 {
		e.acc.Flush()
		return nil
	}
	e.state.CompareAndSwap(int32(Accumulating), int32(Invoking))
	e.state.CompareAndSwap(int32(Draining), int32(Invoking))

	last, ok := e.acc.Last()
	if !ok {
		last = e.lastRow
	}
	bound := params.Bind(e.cfg.Params, row.Strings(last), e.fields, e.vars, e.log)

	inv := observability.NewInvocation(e.cfg.Name, e.def.Name, uuid.NewString(), len(group), e.metrics)
	ictx, span := inv.Start(ctx)
	out := e.runner.Run(ictx, e.def, group, e.meta, bound, e.parent)
	distErr := e.dist.Distribute(ctx, out)

	spanErr := out.Err
	if spanErr == nil {
		spanErr = distErr
	}
	inv.End(ictx, span, out.Status(), spanErr)
	e.invocations.Add(1)

	fields := logger.Fields(
		logger.FieldInvocation, inv.ID,
		logger.FieldChannel, out.LogChannelID,
		logger.FieldGroupSize, len(group),
		logger.FieldStatus, out.Status(),
		logger.FieldDuration, out.Elapsed.Milliseconds(),
	)
	switch {
	case out.Stopped:
		e.log.Warn("Sub-pipeline stopped", fields)
	case !out.Succeeded:
		e.errors.Add(int64(max(out.Errors, 1)))
		fields[logger.FieldErrors] = out.Errors
		if out.Err != nil {
			fields[logger.FieldError] = out.Err.Error()
		}
		e.log.Error("Sub-pipeline failed", fields)
	default:
		e.log.Debug("Sub-pipeline finished", fields)
	}

	if e.journal != nil {
		entry := journal.NewEntry(e.cfg.Name, e.def.Name, inv.ID, len(group), inv.StartTime, out)
		if err := e.journal.Record(ctx, entry); err != nil {
			e.log.Warn("Journal record failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}

	e.acc.Flush()
	return distErr
}

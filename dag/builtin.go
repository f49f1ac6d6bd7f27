package dag

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kbukum/etlkit/logger"
	"github.com/kbukum/etlkit/pipeline"
	"github.com/kbukum/etlkit/row"
)

// Built-in component names.
const (
	ComponentRowsInput  = "rows.input"
	ComponentRowsFilter = "rows.filter"
	ComponentRowsSet    = "rows.set"
	ComponentRowsOutput = "rows.output"
	ComponentFilesAdd   = "files.add"
	ComponentVarsSet    = "vars.set"
	ComponentLog        = "log"
	ComponentWait       = "wait"
	ComponentAbort      = "abort"
	ComponentStop       = "stop"
)

// RegisterBuiltins adds the built-in step kinds to r.
//
//	rows.input   loads the preloaded working set into RowsPort
//	rows.filter  keeps rows whose `field` equals `value`
//	rows.set     sets column `field` to `value` (typed by `type`)
//	rows.output  collects RowsPort as the run's result rows
//	files.add    registers result file `name`, or one file per value of `field`
//	vars.set     sets variable `name` to `value`
//	log          writes `message` to the run log at `level`
//	wait         sleeps for `duration` unless cancelled
//	abort        fails the run with `message` and exit status `status`
//	stop         requests a safe stop
func RegisterBuiltins(r *Registry) {
	r.RegisterFactory(ComponentRowsInput, newRowsInput)
	r.RegisterFactory(ComponentRowsFilter, newRowsFilter)
	r.RegisterFactory(ComponentRowsSet, newRowsSet)
	r.RegisterFactory(ComponentRowsOutput, newRowsOutput)
	r.RegisterFactory(ComponentFilesAdd, newFilesAdd)
	r.RegisterFactory(ComponentVarsSet, newVarsSet)
	r.RegisterFactory(ComponentLog, newLog)
	r.RegisterFactory(ComponentWait, newWait)
	r.RegisterFactory(ComponentAbort, newAbort)
	r.RegisterFactory(ComponentStop, newStop)
}

func newRowsInput(def NodeDef) (Node, error) {
	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		in := s.Input()
		Write(s, RowsPort, in)
		s.Count(CounterRead, int64(len(in.Rows)))
		s.Count(CounterInput, int64(len(in.Rows)))
		return len(in.Rows), nil
	}), nil
}

func newRowsFilter(def NodeDef) (Node, error) {
	field := def.Setting("field", "")
	if field == "" {
		return nil, fmt.Errorf("%s: field is required", def.Component)
	}
	value := def.Setting("value", "")

	return NodeFunc(def.NodeName(), func(ctx context.Context, s *State) (any, error) {
		rs, err := Read(s, RowsPort)
		if err != nil {
			return nil, err
		}
		idx := rs.Meta.IndexOf(s.Substitute(field))
		if idx < 0 {
			return nil, fmt.Errorf("%s: field %q not found in %s", def.NodeName(), field, rs.Meta)
		}
		want := s.Substitute(value)

		kept, err := pipeline.Collect(ctx, pipeline.Filter(pipeline.FromSlice(rs.Rows), func(r row.Row) bool {
			v, _ := r.Get(idx)
			return row.Format(v) == want
		}))
		if err != nil {
			return nil, err
		}
		s.Count(CounterRejected, int64(len(rs.Rows)-len(kept)))
		Write(s, RowsPort, Rowset{Meta: rs.Meta, Rows: kept})
		return len(kept), nil
	}), nil
}

func newRowsSet(def NodeDef) (Node, error) {
	field := def.Setting("field", "")
	if field == "" {
		return nil, fmt.Errorf("%s: field is required", def.Component)
	}
	typ, err := row.ParseType(def.Setting("type", "String"))
	if err != nil {
		return nil, err
	}
	value := def.Setting("value", "")

	return NodeFunc(def.NodeName(), func(ctx context.Context, s *State) (any, error) {
		rs, err := Read(s, RowsPort)
		if err != nil {
			return nil, err
		}
		v, err := row.Convert(s.Substitute(value), typ)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.NodeName(), err)
		}

		meta := rs.Meta.Clone()
		if meta == nil {
			meta = row.NewMeta()
		}
		idx := meta.IndexOf(field)
		if idx < 0 {
			meta.Add(row.NewValueMeta(field, typ))
			idx = meta.Size() - 1
		} else {
			s.Count(CounterUpdated, int64(len(rs.Rows)))
		}

		out, err := pipeline.Collect(ctx, pipeline.Map(pipeline.FromSlice(rs.Rows), func(_ context.Context, r row.Row) (row.Row, error) {
			nr := make(row.Row, max(len(r), idx+1))
			copy(nr, r)
			nr[idx] = v
			return nr, nil
		}))
		if err != nil {
			return nil, err
		}
		Write(s, RowsPort, Rowset{Meta: meta, Rows: out})
		return len(out), nil
	}), nil
}

func newRowsOutput(def NodeDef) (Node, error) {
	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		rs, err := Read(s, RowsPort)
		if err != nil {
			return nil, err
		}
		for _, r := range rs.Rows {
			s.EmitResult(rs.Meta, r)
		}
		s.Count(CounterWritten, int64(len(rs.Rows)))
		s.Count(CounterOutput, int64(len(rs.Rows)))
		return len(rs.Rows), nil
	}), nil
}

func newFilesAdd(def NodeDef) (Node, error) {
	name := def.Setting("name", "")
	field := def.Setting("field", "")
	if name == "" && field == "" {
		return nil, fmt.Errorf("%s: name or field is required", def.Component)
	}

	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		if field == "" {
			s.AddFile(s.Substitute(name))
			return 1, nil
		}
		rs, err := Read(s, RowsPort)
		if err != nil {
			return nil, err
		}
		idx := rs.Meta.IndexOf(field)
		if idx < 0 {
			return nil, fmt.Errorf("%s: field %q not found in %s", def.NodeName(), field, rs.Meta)
		}
		added := 0
		for _, r := range rs.Rows {
			if v, ok := r.Get(idx); ok {
				s.AddFile(row.Format(v))
				added++
			}
		}
		return added, nil
	}), nil
}

func newVarsSet(def NodeDef) (Node, error) {
	name := def.Setting("name", "")
	if name == "" {
		return nil, fmt.Errorf("%s: name is required", def.Component)
	}
	value := def.Setting("value", "")

	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		v := s.Substitute(value)
		s.Vars.Set(name, v)
		return v, nil
	}), nil
}

func newLog(def NodeDef) (Node, error) {
	message := def.Setting("message", "")
	level := def.Setting("level", "info")

	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		msg := s.Substitute(message)
		fields := logger.Fields(logger.FieldStep, def.NodeName())
		switch level {
		case "debug":
			s.Log.Debug(msg, fields)
		case "warn":
			s.Log.Warn(msg, fields)
		case "error":
			s.Log.Error(msg, fields)
		default:
			s.Log.Info(msg, fields)
		}
		return msg, nil
	}), nil
}

func newWait(def NodeDef) (Node, error) {
	d, err := time.ParseDuration(def.Setting("duration", "0s"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Component, err)
	}

	return NodeFunc(def.NodeName(), func(ctx context.Context, _ *State) (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), nil
}

func newAbort(def NodeDef) (Node, error) {
	message := def.Setting("message", "aborted")
	status, err := strconv.Atoi(def.Setting("status", "1"))
	if err != nil {
		return nil, fmt.Errorf("%s: status: %w", def.Component, err)
	}

	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		s.SetExitStatus(status)
		return nil, fmt.Errorf("%s", s.Substitute(message))
	}), nil
}

func newStop(def NodeDef) (Node, error) {
	return NodeFunc(def.NodeName(), func(_ context.Context, s *State) (any, error) {
		s.RequestSafeStop()
		return nil, nil
	}), nil
}

// Package executor implements the batch step: it accumulates incoming rows
// into groups, runs a nested pipeline once per group and distributes each
// outcome to the bound output channels.
//
// Processing inside one Executor is sequential. A group's nested run blocks
// the caller, so no new rows are accepted while a group is in flight.
//
//	exec, err := executor.New(cfg, executor.Deps{
//	    Loader:  dag.NewFilePipelineLoader("./pipelines"),
//	    Emitter: out,
//	    Log:     log,
//	})
//	if err != nil {
//	    return err
//	}
//	err = exec.Run(ctx, meta, rows)
package executor

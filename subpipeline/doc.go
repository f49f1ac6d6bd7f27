// Package subpipeline runs one nested pipeline invocation for a group of rows.
//
// A Runner builds a fresh dag.Instance for every call, binds parameters into
// a child variable scope, preloads the group as the instance's working set
// and blocks until the nested run completes. The result of each call is an
// Outcome: status, counters, produced rows and files, and the captured log.
//
//	runner := subpipeline.New(engine, registry, loader, paramsCfg)
//	out := runner.Run(ctx, def, group, meta, bindings, parent)
//	if !out.Succeeded {
//	    log.Warn("invocation failed", logger.Fields("errors", out.Errors))
//	}
package subpipeline

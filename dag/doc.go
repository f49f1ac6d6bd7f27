// Package dag provides the DAG (Directed Acyclic Graph) engine that runs
// nested pipelines.
//
// A Pipeline is a YAML-defined list of nodes with dependencies, optional
// includes and declared parameters. NewInstance resolves it against a
// Registry of node factories, so every instance gets fresh nodes, and binds
// it to a State holding the run's variables, log sink, preloaded input rows,
// counters, and collected results. Nodes of one dependency level run
// concurrently; Instance.Start returns immediately and Wait blocks until the
// run completes. Stop cancels the run through its context.
//
//	inst, err := engine.NewInstance(p, dag.NewBuiltinRegistry(), loader, state)
//	if err := inst.Start(ctx); err != nil { ... }
//	res, err := inst.Wait()
package dag

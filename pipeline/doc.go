// Package pipeline provides the pull-based record streams etlkit steps read
// from.
//
// Streams are lazy: no work happens until values are pulled via Collect,
// Drain or ForEach, and each stage pulls from the previous one on demand,
// which gives natural backpressure. A step that blocks while handling a value
// (for example while a nested pipeline runs) stops upstream pulls until it
// returns.
//
// # Usage
//
//	src := pipeline.From[row.Row](reader)
//	live := pipeline.TakeUntil(src, exec.SafeStopRequested)
//	err := pipeline.ForEach(ctx, live, handle)
package pipeline

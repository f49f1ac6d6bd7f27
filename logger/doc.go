// Package logger wraps zerolog with the conventions used by etlkit steps:
// a service tag, component-scoped child loggers, map-based structured fields
// and per-logger levels so nested pipelines can inherit their parent's level.
//
// A Capture is an in-memory sink that records the log output of a single
// nested pipeline run so it can be reported back in the run's outcome.
package logger

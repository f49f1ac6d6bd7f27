// Package bootstrap runs a batch process with uniform lifecycle management.
//
// Components (executors, the journal) are registered on an App, started in
// registration order before the task runs and stopped in reverse order after
// it. SIGINT and SIGTERM cancel the task and stop the components early.
// A startup summary and a final health report are printed to stderr.
package bootstrap

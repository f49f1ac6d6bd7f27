// Package component defines the lifecycle interface shared by the long-lived
// parts of an etlkit process (batch executors, the invocation journal) and a
// Registry that starts them in order and stops them in reverse.
package component

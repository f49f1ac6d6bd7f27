// Package distribute fans the outcome of a nested pipeline invocation out
// to up to four output channels: passthrough of the input rows, one metrics
// record per invocation, the rows the nested pipeline produced, and one
// record per file it produced. Unbound channels receive nothing.
package distribute

// Package row defines the record model shared by every etlkit step: ordered
// value metadata (Meta), positional records (Row), the push primitive used to
// address named downstream channels (Emitter) and an in-memory Collector.
package row

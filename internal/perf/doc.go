// Package perf holds the per-process profiling state for traced file
// operations: the string intern table, the event records and the event
// buffer that owns both, plus the on-disk profile format a drained buffer is
// exported to.
//
// Nothing in this package is safe for concurrent use. The tracing layer
// serialises every append under its process-wide lock, and the aggregation
// side only ever reads a drained, immutable copy.
package perf

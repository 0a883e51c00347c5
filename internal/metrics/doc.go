// Package metrics times engine operations and summarizes them.
//
// A Recorder wraps an operation, measures it, and hands the resulting Metric
// to an injected Sink. Sinks never fail the measured operation; a sink error
// is logged and dropped. The analysis store persists metrics in SQLite and
// Memory keeps them in process.
package metrics

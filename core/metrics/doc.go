// Package metrics defines the sinks that observe the dispatch lifecycle.
// A sink always records dispatch outcomes and may optionally record
// vehicle state, hospital load and incident transitions. Sinks are
// created from configuration through the factory helpers, and several
// configured sinks are combined in a MultiSink.
package metrics

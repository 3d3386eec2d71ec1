// Package sinks contains the progress.Sink implementations: structured log
// output and Prometheus run-lifecycle metrics.
package sinks

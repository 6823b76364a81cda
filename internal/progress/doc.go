// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces that the freeze and deploy pipelines use to report
// milestones. It batches events on a background goroutine and fans them out
// to pluggable sinks such as Prometheus metrics or the run audit store.
package progress

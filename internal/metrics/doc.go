// Package metrics aggregates what the workers observe during a run.
//
// A [Collector] is both the latency recorder handed to every worker and the
// iteration observer they report to:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//
//	collector.Record("GET", 12*time.Millisecond)
//	collector.ObserveIteration(0, err)
//
//	stats := collector.Stats(time.Since(start))
//
// # Latency
//
// Latencies are kept in one HDR histogram per HTTP method with microsecond
// resolution and reported in milliseconds. Each recorded value covers the
// whole call, including payload fetch, retries and the downstream function.
//
// # Failures
//
// Failed iterations are bucketed by [FailureLabel], which recognises the
// retry, storage and panic sentinels and falls back to a readable name for
// the error's dynamic type.
//
// All Collector methods are safe for concurrent use.
package metrics

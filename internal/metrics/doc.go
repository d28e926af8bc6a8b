// Package metrics provides outcome classification types and thread-safe aggregation for load runs.
//
// Every request a worker issues produces exactly one [Outcome]: either a success carrying
// the status code, or a failure tagged with an [ErrorKind] (timeout, connection_refused,
// malformed_response, http_error_status). Workers hand outcomes to a shared [Collector].
//
// # Collector
//
//	collector := metrics.NewCollector()
//	collector.Start() // Mark run start for accurate RPS calculation
//
//	collector.Record(outcome)
//
//	// Live view for progress output
//	stats := collector.Stats(elapsed)
//
//	// Consistent copy of counters and the per-request log once workers have joined
//	report := collector.Snapshot(elapsed)
//
// # Thread Safety
//
// Record performs one mutex-protected update covering the result log append, the
// success/failure counters, the per-kind counters and the latency histogram, so
// concurrent workers never observe torn totals. The lock is never held across I/O.
//
// # Observers
//
// An [Observer] registered with [Collector.AddObserver] sees each outcome after the
// lock is released. [PrometheusExporter] is the built-in observer.
package metrics

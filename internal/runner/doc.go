// Package runner provides the request dispatch engine for hbench.
//
// A run is N requests spread over C workers. Workers share one atomic [Budget];
// each iteration claims a unit, executes one request and records its outcome,
// so exactly N requests are issued no matter how C relates to N.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Total:       1000,
//		Concurrency: 10,
//		Executor:    exec,
//	})
//	if err != nil {
//		return err
//	}
//	report, err := r.Run(ctx)
//
// # Cancellation
//
// Cancelling ctx, or reaching [Options.TimeLimit], drains the budget so no
// new request is claimed. Requests already claimed run on a context detached
// from ctx and are always recorded. If they outlast [Options.GracefulShutdown]
// their context is cancelled and the executor reports them as timeouts.
//
// # Arrival Models
//
// With a non-zero rate, one shared [Pacer] spaces requests across all workers:
//   - [ArrivalModelUniform]: fixed spacing via a token bucket
//   - [ArrivalModelPoisson]: exponential inter-arrival times
//
// # Middleware
//
// Executors can be wrapped before they are handed to the runner:
//   - [WithRetry]: re-issue refused connections and 5xx/429 responses
//   - [WithLogging]: log failed outcomes
package runner

package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hbench/hbench/internal/metrics"
)

var (
	// ErrAccountingMismatch means the recorded outcomes do not match the claimed budget.
	ErrAccountingMismatch = errors.New("recorded outcomes do not match claimed requests")
	// ErrRunnerReused is returned by a second call to Run.
	ErrRunnerReused = errors.New("runner has already been run")
)

// Runner coordinates one load run: it owns the budget, starts the pool and
// waits for every worker before producing the report.
type Runner struct {
	opt     Options
	pacer   Pacer
	started atomic.Bool
}

func New(opt Options) (*Runner, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	opt.normalize()
	return &Runner{opt: opt, pacer: newPacer(opt)}, nil
}

// Collector exposes the aggregator so live views can read it during the run.
func (r *Runner) Collector() *metrics.Collector {
	return r.opt.Collector
}

// Workers is the number of goroutines Run will start.
func (r *Runner) Workers() int {
	return WorkerCount(r.opt.Total, r.opt.Concurrency)
}

// Run issues requests until the budget is exhausted, ctx is cancelled or the
// time limit passes. It never returns before every claimed request has been
// recorded, so the report always accounts for each claim.
func (r *Runner) Run(ctx context.Context) (metrics.Report, error) {
	if !r.started.CompareAndSwap(false, true) {
		return metrics.Report{}, ErrRunnerReused
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if r.opt.TimeLimit > 0 {
		// No deadline on runCtx: rate.Limiter.Wait fails early on a deadline
		// that falls before the next token.
		limit := time.AfterFunc(r.opt.TimeLimit, cancelRun)
		defer limit.Stop()
	}

	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	budget := NewBudget(int64(r.opt.Total))
	pool := &Pool{
		Workers:        r.Workers(),
		Executor:       r.opt.Executor,
		Recorder:       r.opt.Collector,
		Pacer:          r.pacer,
		RequestContext: reqCtx,
	}

	start := time.Now()
	r.opt.Collector.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(runCtx, budget)
	}()

	var unclaimed int64
	select {
	case <-done:
		// Workers also stop early when runCtx ends while they are pacing.
		unclaimed = budget.Drain()
	case <-runCtx.Done():
		unclaimed = budget.Drain()
		r.awaitInFlight(done, cancelRequests)
	}

	elapsed := time.Since(start)
	report := r.opt.Collector.Snapshot(elapsed)
	report.RunID = ulid.Make().String()
	report.Target = r.opt.Target
	report.Requested = int64(r.opt.Total)
	report.Concurrency = r.opt.Concurrency
	report.Cancelled = unclaimed > 0

	if claimed := budget.Claimed(); report.Total != claimed {
		return report, fmt.Errorf("%w: recorded %d, claimed %d", ErrAccountingMismatch, report.Total, claimed)
	}
	return report, nil
}

// awaitInFlight waits for workers to finish their current request. Once the
// graceful window passes, outstanding requests are cancelled; executors still
// report them, so they are still recorded.
func (r *Runner) awaitInFlight(done <-chan struct{}, cancelRequests context.CancelFunc) {
	if r.opt.GracefulShutdown <= 0 {
		<-done
		return
	}
	timer := time.NewTimer(r.opt.GracefulShutdown)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		cancelRequests()
		<-done
	}
}

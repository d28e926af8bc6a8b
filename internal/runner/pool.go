package runner

import (
	"context"
	"sync"
)

// Pool runs a fixed set of workers that each loop: pace, claim, execute, record.
type Pool struct {
	Workers  int
	Executor Executor
	Recorder Recorder
	Pacer    Pacer // optional
	// RequestContext is handed to Execute. It is normally detached from ctx so
	// a claimed request is never abandoned when the run is cancelled.
	RequestContext context.Context
}

// WorkerCount is the number of workers worth starting: never more than there
// are requests to issue.
func WorkerCount(total, concurrency int) int {
	if total < concurrency {
		return total
	}
	return concurrency
}

// Run blocks until every worker has exited. Workers exit when the budget is
// exhausted or drained, or when ctx ends while they wait for pacing.
func (p *Pool) Run(ctx context.Context, budget *Budget) {
	reqCtx := p.RequestContext
	if reqCtx == nil {
		reqCtx = context.WithoutCancel(ctx)
	}

	var wg sync.WaitGroup
	wg.Add(p.Workers)
	for i := 0; i < p.Workers; i++ {
		go func() {
			defer wg.Done()
			p.work(ctx, reqCtx, budget)
		}()
	}
	wg.Wait()
}

func (p *Pool) work(ctx, reqCtx context.Context, budget *Budget) {
	for {
		if ctx.Err() != nil || budget.Remaining() == 0 {
			return
		}
		if p.Pacer != nil {
			if err := p.Pacer.Wait(ctx); err != nil {
				return
			}
		}
		if !budget.Claim() {
			return
		}
		p.Recorder.Record(p.Executor.Execute(reqCtx))
	}
}

package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hbench/hbench/internal/metrics"
)

// Executor performs a single request and classifies its result.
// Implementations must always return an Outcome, even when ctx is cancelled.
type Executor interface {
	Execute(ctx context.Context) metrics.Outcome
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context) metrics.Outcome

func (f ExecutorFunc) Execute(ctx context.Context) metrics.Outcome {
	return f(ctx)
}

// Recorder receives one outcome per claimed request. *metrics.Collector satisfies it.
type Recorder interface {
	Record(o metrics.Outcome)
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Total            int                // requests to issue (N, required >= 1)
	Concurrency      int                // worker goroutines (C, required >= 1)
	Executor         Executor           // request executor (required)
	Collector        *metrics.Collector // shared aggregator; New creates one when nil
	Target           string             // recorded in the report
	TimeLimit        time.Duration      // stop issuing after this long (0 means no limit)
	GracefulShutdown time.Duration      // wait this long for in-flight requests before cancelling them (0 waits for them to finish)
	RatePerSecond    int                // requests per second pacing (0 means unlimited)
	ArrivalModel     ArrivalModel
	PoissonSampler   func() float64 // optional injection for tests; defaults to a seeded exponential sampler
	RandomSeed       int64
	LimiterFactory   func(rps int) *rate.Limiter // optional injection for tests
}

// OptionsError lists every invalid option; no worker starts when New returns it.
type OptionsError struct {
	issues []string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %s", strings.Join(e.issues, "; "))
}

func (e *OptionsError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (o Options) validate() error {
	var issues []string
	if o.Total < 1 {
		issues = append(issues, fmt.Sprintf("total must be >= 1, got %d", o.Total))
	}
	if o.Concurrency < 1 {
		issues = append(issues, fmt.Sprintf("concurrency must be >= 1, got %d", o.Concurrency))
	}
	if o.Executor == nil {
		issues = append(issues, "executor is required")
	}
	if o.TimeLimit < 0 {
		issues = append(issues, "time limit must be >= 0")
	}
	if o.GracefulShutdown < 0 {
		issues = append(issues, "graceful shutdown must be >= 0")
	}
	if o.RatePerSecond < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	switch o.ArrivalModel {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", o.ArrivalModel))
	}
	if len(issues) > 0 {
		return &OptionsError{issues: issues}
	}
	return nil
}

func (o *Options) normalize() {
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

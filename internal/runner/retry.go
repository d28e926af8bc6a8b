package runner

import (
	"context"
	"net/http"
	"time"

	"github.com/hbench/hbench/internal/metrics"
)

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(o metrics.Outcome)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                                   // total attempts including initial try
	Delay       time.Duration                                         // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(metrics.Outcome) bool                            // predicate; if nil, DefaultShouldRetry
	DelayFunc   func(attempt int, last metrics.Outcome) time.Duration // dynamic backoff; attempt is 1-based
}

// DefaultShouldRetry retries refused connections and server-side statuses (5xx, 429).
// Timeouts and malformed responses are not retried.
func DefaultShouldRetry(o metrics.Outcome) bool {
	switch o.Kind {
	case metrics.KindConnectionRefused:
		return true
	case metrics.KindHTTPErrorStatus:
		return o.StatusCode == http.StatusTooManyRequests || o.StatusCode >= 500
	default:
		return false
	}
}

// retryExecutor wraps an Executor with retry logic.
type retryExecutor struct {
	inner  Executor
	policy RetryPolicy
}

// WithRetry re-issues a claimed request while its outcome is retryable. The
// caller still receives exactly one Outcome: the last attempt's, with latency
// covering every attempt.
func WithRetry(exec Executor, policy RetryPolicy) Executor {
	if policy.MaxAttempts <= 1 {
		return exec // no retries needed
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = DefaultShouldRetry
	}
	return &retryExecutor{
		inner:  exec,
		policy: policy,
	}
}

func (r *retryExecutor) Execute(ctx context.Context) metrics.Outcome {
	first := time.Now()
	var last metrics.Outcome
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		last = r.inner.Execute(ctx)
		if last.Success() || attempt == r.policy.MaxAttempts || !r.policy.ShouldRetry(last) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		var delay time.Duration
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, last)
		} else {
			delay = r.policy.Delay
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return spanAttempts(last, first)
			}
		}
	}
	return spanAttempts(last, first)
}

func spanAttempts(o metrics.Outcome, first time.Time) metrics.Outcome {
	o.Started = first
	o.Latency = time.Since(first)
	return o
}

// loggingExecutor wraps an Executor with failure logging.
type loggingExecutor struct {
	inner  Executor
	logger FailureLogger
}

// WithLogging wraps an Executor to log failures.
func WithLogging(exec Executor, logger FailureLogger) Executor {
	if logger == nil {
		return exec
	}
	return &loggingExecutor{
		inner:  exec,
		logger: logger,
	}
}

func (l *loggingExecutor) Execute(ctx context.Context) metrics.Outcome {
	o := l.inner.Execute(ctx)
	if !o.Success() {
		l.logger.LogFailure(o)
	}
	return o
}

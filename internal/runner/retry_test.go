package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/runner"
)

// scriptedExecutor returns kinds[i] for the i-th call, then successes.
type scriptedExecutor struct {
	mu    sync.Mutex
	kinds []metrics.ErrorKind
	codes []int
	calls int
}

func (s *scriptedExecutor) Execute(ctx context.Context) metrics.Outcome {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	started := time.Now()
	if i < len(s.kinds) && s.kinds[i] != metrics.KindNone {
		code := 0
		if i < len(s.codes) {
			code = s.codes[i]
		}
		return metrics.Failure(s.kinds[i], code, started, time.Millisecond, errors.New("scripted failure"))
	}
	return metrics.Success(200, started, time.Millisecond)
}

func (s *scriptedExecutor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRetryRespectsMaxAttempts(t *testing.T) {
	exec := &scriptedExecutor{kinds: []metrics.ErrorKind{
		metrics.KindConnectionRefused,
		metrics.KindConnectionRefused,
		metrics.KindConnectionRefused,
	}}
	policy := runner.RetryPolicy{
		MaxAttempts: 5,
		DelayFunc: func(attempt int, _ metrics.Outcome) time.Duration {
			return time.Duration(attempt) * time.Millisecond
		},
	}

	out := runner.WithRetry(exec, policy).Execute(context.Background())
	if !out.Success() {
		t.Fatalf("expected success after retries, got %v", out)
	}
	if exec.Calls() != 4 {
		t.Fatalf("attempts = %d, want 4", exec.Calls())
	}
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	kinds := make([]metrics.ErrorKind, 10)
	codes := make([]int, 10)
	for i := range kinds {
		kinds[i] = metrics.KindHTTPErrorStatus
		codes[i] = 503
	}
	exec := &scriptedExecutor{kinds: kinds, codes: codes}

	out := runner.WithRetry(exec, runner.RetryPolicy{MaxAttempts: 3}).Execute(context.Background())
	if out.Kind != metrics.KindHTTPErrorStatus || out.StatusCode != 503 {
		t.Fatalf("unexpected final outcome %v", out)
	}
	if exec.Calls() != 3 {
		t.Fatalf("attempts = %d, want 3", exec.Calls())
	}
}

func TestRetrySkipsNonRetryableOutcomes(t *testing.T) {
	for _, kind := range []metrics.ErrorKind{metrics.KindTimeout, metrics.KindMalformedResponse} {
		exec := &scriptedExecutor{kinds: []metrics.ErrorKind{kind}}
		out := runner.WithRetry(exec, runner.RetryPolicy{MaxAttempts: 4}).Execute(context.Background())
		if out.Kind != kind {
			t.Fatalf("kind = %s, want %s", out.Kind, kind)
		}
		if exec.Calls() != 1 {
			t.Fatalf("%s: attempts = %d, want 1", kind, exec.Calls())
		}
	}
}

func TestRetryLatencySpansAllAttempts(t *testing.T) {
	exec := &scriptedExecutor{kinds: []metrics.ErrorKind{metrics.KindConnectionRefused}}
	before := time.Now()
	out := runner.WithRetry(exec, runner.RetryPolicy{MaxAttempts: 2, Delay: 20 * time.Millisecond}).Execute(context.Background())

	if !out.Success() {
		t.Fatalf("expected success, got %v", out)
	}
	if out.Latency < 20*time.Millisecond {
		t.Fatalf("latency %v does not include the retry delay", out.Latency)
	}
	if out.Started.Before(before) || out.Started.After(before.Add(10*time.Millisecond)) {
		t.Fatalf("Started should be the first attempt's start")
	}
}

func TestRetryDisabledReturnsInner(t *testing.T) {
	exec := &scriptedExecutor{}
	if got := runner.WithRetry(exec, runner.RetryPolicy{MaxAttempts: 1}); got != runner.Executor(exec) {
		t.Fatalf("MaxAttempts 1 should not wrap the executor")
	}
}

func TestDefaultShouldRetry(t *testing.T) {
	tests := []struct {
		kind metrics.ErrorKind
		code int
		want bool
	}{
		{metrics.KindConnectionRefused, 0, true},
		{metrics.KindHTTPErrorStatus, 500, true},
		{metrics.KindHTTPErrorStatus, 503, true},
		{metrics.KindHTTPErrorStatus, 429, true},
		{metrics.KindHTTPErrorStatus, 404, false},
		{metrics.KindTimeout, 0, false},
		{metrics.KindMalformedResponse, 0, false},
	}
	for _, tt := range tests {
		o := metrics.Failure(tt.kind, tt.code, time.Now(), 0, errors.New("x"))
		if got := runner.DefaultShouldRetry(o); got != tt.want {
			t.Errorf("DefaultShouldRetry(%s, %d) = %v, want %v", tt.kind, tt.code, got, tt.want)
		}
	}
}

// Retries happen inside a claim, so the report still has one outcome per request.
func TestRetryKeepsOneOutcomePerClaim(t *testing.T) {
	var attempts atomic.Int64
	exec := runner.ExecutorFunc(func(ctx context.Context) metrics.Outcome {
		n := attempts.Add(1)
		if n%2 == 1 {
			return metrics.Failure(metrics.KindConnectionRefused, 0, time.Now(), 0, errors.New("refused"))
		}
		return metrics.Success(200, time.Now(), time.Millisecond)
	})
	r := mustNew(t, runner.Options{
		Total:       5,
		Concurrency: 1,
		Executor:    runner.WithRetry(exec, runner.RetryPolicy{MaxAttempts: 2}),
	})

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Total != 5 || rep.Successes != 5 {
		t.Fatalf("total=%d successes=%d, want 5/5", rep.Total, rep.Successes)
	}
	if attempts.Load() != 10 {
		t.Fatalf("attempts = %d, want 10", attempts.Load())
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	kinds []metrics.ErrorKind
}

func (l *recordingLogger) LogFailure(o metrics.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, o.Kind)
}

func TestWithLoggingLogsOnlyFailures(t *testing.T) {
	exec := &scriptedExecutor{kinds: []metrics.ErrorKind{
		metrics.KindTimeout,
		metrics.KindNone,
		metrics.KindMalformedResponse,
	}}
	logger := &recordingLogger{}
	wrapped := runner.WithLogging(exec, logger)

	for i := 0; i < 4; i++ {
		wrapped.Execute(context.Background())
	}
	if len(logger.kinds) != 2 {
		t.Fatalf("logged %d failures, want 2", len(logger.kinds))
	}
	if logger.kinds[0] != metrics.KindTimeout || logger.kinds[1] != metrics.KindMalformedResponse {
		t.Fatalf("unexpected logged kinds %v", logger.kinds)
	}
}

func TestWithLoggingNilLogger(t *testing.T) {
	exec := &scriptedExecutor{}
	if got := runner.WithLogging(exec, nil); got != runner.Executor(exec) {
		t.Fatalf("nil logger should not wrap the executor")
	}
}

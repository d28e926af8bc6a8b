package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hbench/hbench/internal/config"
	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/tracing"
)

// Executor issues one GET per call and turns every result into an Outcome.
type Executor struct {
	client    *http.Client
	builder   *RequestBuilder
	tracer    trace.Tracer
	propagate bool
}

type ExecutorOption func(*Executor)

// WithTracer wraps each request in a client span; propagate injects W3C headers.
func WithTracer(tracer trace.Tracer, propagate bool) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
		e.propagate = propagate
	}
}

func NewExecutor(client *http.Client, builder *RequestBuilder, opts ...ExecutorOption) *Executor {
	if client == nil {
		client = NewClient(config.DefaultTimeout)
	}
	e := &Executor{client: client, builder: builder}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute never returns an error: transport failures and non-success statuses
// are classified into the returned Outcome.
func (e *Executor) Execute(ctx context.Context) metrics.Outcome {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, e.tracer, http.MethodGet, e.builder.Target())
	}

	started := time.Now()
	outcome := e.do(ctx, started)

	if span != nil {
		attrs := []attribute.KeyValue{attribute.String("hbench.outcome", outcomeLabel(outcome))}
		if outcome.StatusCode != 0 {
			attrs = append(attrs, attribute.Int("http.response.status_code", outcome.StatusCode))
		}
		var spanErr error
		if !outcome.Success() {
			spanErr = fmt.Errorf("%s: %s", outcome.Kind, outcome.Err)
		}
		tracing.EndSpan(span, spanErr, attrs...)
	}
	return outcome
}

func (e *Executor) do(ctx context.Context, started time.Time) metrics.Outcome {
	req, err := e.builder.Build(ctx)
	if err != nil {
		return metrics.Failure(metrics.KindMalformedResponse, 0, started, time.Since(started), err)
	}
	if e.tracer != nil && e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return metrics.Failure(Classify(err), 0, started, time.Since(started), err)
	}

	_, readErr := io.Copy(io.Discard, resp.Body)
	closeErr := resp.Body.Close()
	latency := time.Since(started)

	if readErr != nil {
		kind := metrics.KindMalformedResponse
		if isTimeout(readErr) {
			kind = metrics.KindTimeout
		}
		return metrics.Failure(kind, resp.StatusCode, started, latency, readErr)
	}
	if closeErr != nil {
		return metrics.Failure(metrics.KindMalformedResponse, resp.StatusCode, started, latency, closeErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return metrics.Success(resp.StatusCode, started, latency)
	}
	return metrics.Failure(metrics.KindHTTPErrorStatus, resp.StatusCode, started, latency,
		fmt.Errorf("unexpected status %d", resp.StatusCode))
}

// Classify maps an error returned before any response was received to an ErrorKind.
func Classify(err error) metrics.ErrorKind {
	if err == nil {
		return metrics.KindNone
	}
	if isTimeout(err) {
		return metrics.KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return metrics.KindConnectionRefused
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return metrics.KindConnectionRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return metrics.KindConnectionRefused
	}
	// The peer closed a fresh connection without sending anything.
	if errors.Is(err, io.EOF) {
		return metrics.KindConnectionRefused
	}

	// Bad status lines, broken chunking and TLS record errors all land here.
	return metrics.KindMalformedResponse
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeLabel(o metrics.Outcome) string {
	if o.Success() {
		return "success"
	}
	return string(o.Kind)
}

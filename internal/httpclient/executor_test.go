package httpclient_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hbench/hbench/internal/config"
	"github.com/hbench/hbench/internal/httpclient"
	"github.com/hbench/hbench/internal/metrics"
)

func newExecutor(t *testing.T, target string, timeout time.Duration, opts ...httpclient.ExecutorOption) *httpclient.Executor {
	t.Helper()
	builder, err := httpclient.NewRequestBuilder(&config.Config{TargetURL: target})
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	client := httpclient.NewClient(timeout)
	t.Cleanup(client.CloseIdleConnections)
	return httpclient.NewExecutor(client, builder, opts...)
}

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status >= 300 && status < 400 {
			w.Header().Set("Location", "/elsewhere")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "body")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantKind metrics.ErrorKind
	}{
		{http.StatusOK, metrics.KindNone},
		{http.StatusNoContent, metrics.KindNone},
		{http.StatusFound, metrics.KindNone},
		{http.StatusNotModified, metrics.KindNone},
		{http.StatusNotFound, metrics.KindHTTPErrorStatus},
		{http.StatusTooManyRequests, metrics.KindHTTPErrorStatus},
		{http.StatusInternalServerError, metrics.KindHTTPErrorStatus},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := statusServer(t, tt.status)
			exec := newExecutor(t, srv.URL, time.Second)

			out := exec.Execute(context.Background())
			if out.Kind != tt.wantKind {
				t.Fatalf("Kind = %q, want %q (err=%s)", out.Kind, tt.wantKind, out.Err)
			}
			if out.StatusCode != tt.status {
				t.Fatalf("StatusCode = %d, want %d", out.StatusCode, tt.status)
			}
			if out.Latency <= 0 {
				t.Fatalf("Latency = %s, want > 0", out.Latency)
			}
			if out.Started.IsZero() {
				t.Fatalf("Started not set")
			}
		})
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	exec := newExecutor(t, "http://"+addr, time.Second)
	out := exec.Execute(context.Background())
	if out.Kind != metrics.KindConnectionRefused {
		t.Fatalf("Kind = %q, want connection_refused (err=%s)", out.Kind, out.Err)
	}
	if out.StatusCode != 0 {
		t.Fatalf("StatusCode = %d, want 0", out.StatusCode)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	exec := newExecutor(t, srv.URL, 50*time.Millisecond)
	out := exec.Execute(context.Background())
	if out.Kind != metrics.KindTimeout {
		t.Fatalf("Kind = %q, want timeout (err=%s)", out.Kind, out.Err)
	}
}

func TestExecuteCancelledContextIsTimeout(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	exec := newExecutor(t, srv.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := exec.Execute(ctx)
	if out.Kind != metrics.KindTimeout {
		t.Fatalf("Kind = %q, want timeout (err=%s)", out.Kind, out.Err)
	}
}

func TestExecuteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("response writer does not support hijacking")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("this is not http\r\n\r\n")
		_ = buf.Flush()
	}))
	defer srv.Close()

	exec := newExecutor(t, srv.URL, time.Second)
	out := exec.Execute(context.Background())
	if out.Kind != metrics.KindMalformedResponse {
		t.Fatalf("Kind = %q, want malformed_response (err=%s)", out.Kind, out.Err)
	}
}

func TestExecuteTruncatedBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj := w.(http.Hijacker)
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
		_ = buf.Flush()
	}))
	defer srv.Close()

	exec := newExecutor(t, srv.URL, time.Second)
	out := exec.Execute(context.Background())
	if out.Kind != metrics.KindMalformedResponse {
		t.Fatalf("Kind = %q, want malformed_response (err=%s)", out.Kind, out.Err)
	}
	if out.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", out.StatusCode)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want metrics.ErrorKind
	}{
		{"nil", nil, metrics.KindNone},
		{"deadline", context.DeadlineExceeded, metrics.KindTimeout},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), metrics.KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, metrics.KindTimeout},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, metrics.KindConnectionRefused},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), metrics.KindConnectionRefused},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, metrics.KindConnectionRefused},
		{"eof", fmt.Errorf("Get: %w", io.EOF), metrics.KindConnectionRefused},
		{"garbage", errors.New(`malformed HTTP response "junk"`), metrics.KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := httpclient.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestExecuteWithTracerPropagatesContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTextMapPropagator(propagation.TraceContext{})

	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Traceparent")
	}))
	defer srv.Close()

	exec := newExecutor(t, srv.URL, time.Second, httpclient.WithTracer(tp.Tracer("test"), true))
	out := exec.Execute(context.Background())
	if !out.Success() {
		t.Fatalf("expected success, got %s", out)
	}

	if header := <-received; header == "" {
		t.Fatal("traceparent header not sent")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
}

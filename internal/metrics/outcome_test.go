package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestErrorKindLabel(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindNone, "Success"},
		{KindTimeout, "Timeout"},
		{KindConnectionRefused, "Connection refused"},
		{KindHTTPErrorStatus, "HTTP error status"},
		{ErrorKind("tls_failure"), "Tls failure"},
	}
	for _, tt := range tests {
		if got := tt.kind.Label(); got != tt.want {
			t.Errorf("%q.Label() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestParseErrorKind(t *testing.T) {
	k, err := ParseErrorKind("Connection-Refused")
	if err != nil || k != KindConnectionRefused {
		t.Fatalf("ParseErrorKind = %q, %v", k, err)
	}
	if _, err := ParseErrorKind("nope"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestOutcomeVariants(t *testing.T) {
	now := time.Now()
	s := Success(204, now, time.Millisecond)
	if !s.Success() || s.Err != "" {
		t.Fatalf("expected success variant, got %+v", s)
	}
	f := Failure(KindTimeout, 0, now, time.Second, errors.New("deadline"))
	if f.Success() || f.Err != "deadline" {
		t.Fatalf("expected failure variant, got %+v", f)
	}
	if !strings.HasPrefix(f.String(), "timeout") {
		t.Fatalf("String() = %q", f.String())
	}
}

func TestPrometheusExporterObserve(t *testing.T) {
	pe := NewPrometheusExporter()
	pe.SetWorkers(4)
	pe.Observe(Success(200, time.Now(), 5*time.Millisecond))
	pe.Observe(Failure(KindTimeout, 0, time.Now(), time.Second, nil))

	srv := httptest.NewServer(pe.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`hbench_requests_total{kind="none",outcome="success"} 1`,
		`hbench_requests_total{kind="timeout",outcome="error"} 1`,
		`hbench_workers 4`,
		`hbench_request_duration_seconds_count{outcome="success"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hbench/hbench/internal/metrics"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestPrometheusExporterCountsOutcomes(t *testing.T) {
	exporter := metrics.NewPrometheusExporter()
	c := metrics.NewCollector()
	c.AddObserver(exporter)
	exporter.SetWorkers(4)

	now := time.Now()
	c.Record(metrics.Success(200, now, 10*time.Millisecond))
	c.Record(metrics.Success(200, now, 20*time.Millisecond))
	c.Record(metrics.Failure(metrics.KindTimeout, 0, now, time.Second, errors.New("deadline")))

	body := scrape(t, exporter.Handler())
	for _, want := range []string{
		`hbench_requests_total{kind="none",outcome="success"} 2`,
		`hbench_requests_total{kind="timeout",outcome="error"} 1`,
		`hbench_request_duration_seconds_count{outcome="success"} 2`,
		`hbench_workers 4`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q\n%s", want, body)
		}
	}
}

func TestPrometheusExporterServesAndShutsDown(t *testing.T) {
	exporter := metrics.NewPrometheusExporter()
	addr, err := exporter.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "hbench_workers") {
		t.Errorf("served metrics missing hbench_workers:\n%s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestPrometheusExporterShutdownWithoutStart(t *testing.T) {
	if err := metrics.NewPrometheusExporter().Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestPrometheusExporterStartRejectsBadAddress(t *testing.T) {
	if _, err := metrics.NewPrometheusExporter().Start("not-an-address"); err == nil {
		t.Error("Start() error = nil, want listen error")
	}
}

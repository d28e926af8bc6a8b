package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter mirrors recorded outcomes into Prometheus metrics.
// It owns its registry so separate runs never share collectors.
type PrometheusExporter struct {
	registry        *prometheus.Registry
	requestsCounter *prometheus.CounterVec
	latencyHist     *prometheus.HistogramVec
	workersGauge    prometheus.Gauge
	server          *http.Server
}

// NewPrometheusExporter creates an exporter with a fresh registry.
func NewPrometheusExporter() *PrometheusExporter {
	exporter := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		requestsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hbench_requests_total",
				Help: "Total number of recorded requests by outcome",
			},
			[]string{"outcome", "kind"},
		),
		latencyHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hbench_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
			},
			[]string{"outcome"},
		),
		workersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hbench_workers",
				Help: "Number of workers in the current run",
			},
		),
	}

	exporter.registry.MustRegister(
		exporter.requestsCounter,
		exporter.latencyHist,
		exporter.workersGauge,
	)
	return exporter
}

// Observe implements Observer.
func (pe *PrometheusExporter) Observe(o Outcome) {
	outcome := "success"
	kind := "none"
	if !o.Success() {
		outcome = "error"
		kind = string(o.Kind)
	}
	pe.requestsCounter.WithLabelValues(outcome, kind).Inc()
	pe.latencyHist.WithLabelValues(outcome).Observe(o.Latency.Seconds())
}

// SetWorkers publishes the configured concurrency.
func (pe *PrometheusExporter) SetWorkers(n int) {
	pe.workersGauge.Set(float64(n))
}

// Handler returns the /metrics handler for this exporter's registry.
func (pe *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(pe.registry, promhttp.HandlerOpts{})
}

// Start binds addr and serves /metrics in the background.
// Bind failures are returned synchronously so they can abort startup.
func (pe *PrometheusExporter) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", pe.Handler())
	pe.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = pe.server.Serve(ln)
	}()
	return ln.Addr(), nil
}

// Shutdown stops the metrics server if it was started.
func (pe *PrometheusExporter) Shutdown(ctx context.Context) error {
	if pe.server == nil {
		return nil
	}
	if err := pe.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package output_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/output"
	"github.com/hbench/hbench/internal/threshold"
)

// buildReport records outcomes through a real collector so the report carries
// entries and start times the same way a run does.
func buildReport(t *testing.T) metrics.Report {
	t.Helper()
	collector := metrics.NewCollector()
	collector.Start()

	base := time.Now()
	for i := 0; i < 8; i++ {
		collector.Record(metrics.Success(200, base.Add(time.Duration(i)*10*time.Millisecond), 20*time.Millisecond))
	}
	collector.Record(metrics.Failure(metrics.KindHTTPErrorStatus, 503, base.Add(15*time.Millisecond), 40*time.Millisecond, errors.New("503")))
	collector.Record(metrics.Failure(metrics.KindTimeout, 0, base.Add(5*time.Millisecond), 200*time.Millisecond, errors.New("timeout")))

	report := collector.Snapshot(2 * time.Second)
	report.RunID = "01J00000000000000000000000"
	report.Target = "http://example.com/health"
	report.Requested = 10
	report.Concurrency = 4
	return report
}

func TestPrintReportSummary(t *testing.T) {
	var buf bytes.Buffer
	output.PrintReport(&buf, buildReport(t))
	out := buf.String()

	for _, want := range []string{
		"Total Time: 2.00s",
		"Average Request Length: 40ms",
		"Longest Request: 200ms",
		"Average Requests per second: 5",
		"Total Errors: 2",
		"Errors by kind:",
		"HTTP error status: 1",
		"Timeout: 1",
		"200: 8",
		"503: 1",
		"P99:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "stopped early") {
		t.Errorf("completed run should not be reported as stopped early")
	}
}

func TestPrintReportCancelled(t *testing.T) {
	report := buildReport(t)
	report.Requested = 5000
	report.Cancelled = true

	var buf bytes.Buffer
	output.PrintReport(&buf, report)
	if !strings.Contains(buf.String(), "Run stopped early: 10 of 5000 requests issued") {
		t.Errorf("expected early-stop line, got:\n%s", buf.String())
	}
}

func TestPrintReportNoErrors(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.Record(metrics.Success(200, time.Now(), time.Millisecond))

	var buf bytes.Buffer
	output.PrintReport(&buf, collector.Snapshot(time.Second))
	if strings.Contains(buf.String(), "Errors by kind") {
		t.Errorf("error breakdown should be omitted when nothing failed")
	}
	if !strings.Contains(buf.String(), "Total Errors: 0") {
		t.Errorf("expected zero error total")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, buildReport(t)); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	doc := buf.String()

	checks := map[string]int64{
		"total":                    10,
		"successes":                8,
		"failures":                 2,
		"requested":                10,
		"concurrency":              4,
		"errors.timeout":           1,
		"errors.http_error_status": 1,
		"status_codes.503":         1,
	}
	for path, want := range checks {
		if got := gjson.Get(doc, path).Int(); got != want {
			t.Errorf("%s = %d, want %d", path, got, want)
		}
	}
	if got := gjson.Get(doc, "max_latency_ms").Float(); got != 200 {
		t.Errorf("max_latency_ms = %v, want 200", got)
	}
	if got := gjson.Get(doc, "target").String(); got != "http://example.com/health" {
		t.Errorf("target = %q", got)
	}
	if gjson.Get(doc, "Entries").Exists() || gjson.Get(doc, "Latencies").Exists() {
		t.Errorf("per-request log should not be serialized")
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintYAMLReport(&buf, buildReport(t)); err != nil {
		t.Fatalf("PrintYAMLReport() error = %v", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}
	if doc["total"] != 10 {
		t.Errorf("total = %v, want 10", doc["total"])
	}
	if doc["run_id"] != "01J00000000000000000000000" {
		t.Errorf("run_id = %v", doc["run_id"])
	}
	errs, ok := doc["errors"].(map[string]interface{})
	if !ok || errs["timeout"] != 1 {
		t.Errorf("errors = %v, want timeout: 1", doc["errors"])
	}
}

func TestPrintThresholdResults(t *testing.T) {
	ths, err := threshold.ParseMultiple([]string{"errors:count == 0", "latency:max < 500"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	results := threshold.NewEvaluator(ths).Evaluate(buildReport(t))

	var buf bytes.Buffer
	output.PrintThresholdResults(&buf, results)
	out := buf.String()
	if !strings.Contains(out, "FAIL errors:count == 0") || !strings.Contains(out, "PASS latency:max < 500") {
		t.Errorf("unexpected threshold output:\n%s", out)
	}
	if !strings.Contains(out, "1/2 thresholds passed") {
		t.Errorf("missing tally:\n%s", out)
	}

	buf.Reset()
	output.PrintThresholdResults(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("no thresholds should print nothing, got %q", buf.String())
	}
}

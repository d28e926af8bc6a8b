package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/threshold"
)

const rule = "------------------------------"

// PrintReport writes the human-readable run summary.
func PrintReport(w io.Writer, report metrics.Report) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Time: %.2fs\n", report.Duration.Seconds())
	fmt.Fprintf(w, "Average Request Length: %dms\n", int64(report.MeanLatencyMs))
	fmt.Fprintf(w, "Longest Request: %dms\n", int64(report.MaxLatencyMs))
	fmt.Fprintf(w, "Average Requests per second: %d\n", int64(report.RequestsPerSec))
	fmt.Fprintf(w, "Total Errors: %d\n", report.Failures)
	fmt.Fprintln(w, rule)

	if report.Cancelled {
		fmt.Fprintf(w, "Run stopped early: %d of %d requests issued\n", report.Total, report.Requested)
	}

	if report.Total > 0 {
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:  %.1fms\n", report.MinLatencyMs)
		fmt.Fprintf(w, "  P50:  %.1fms\n", report.P50LatencyMs)
		fmt.Fprintf(w, "  P90:  %.1fms\n", report.P90LatencyMs)
		fmt.Fprintf(w, "  P95:  %.1fms\n", report.P95LatencyMs)
		fmt.Fprintf(w, "  P99:  %.1fms\n", report.P99LatencyMs)
	}

	if rows := report.ErrorBreakdown(); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors by kind:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", row.Kind.Label(), row.Count)
		}
	}

	if len(report.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus codes:")
		codes := make([]int, 0, len(report.StatusCodes))
		for code := range report.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, report.StatusCodes[code])
		}
	}
}

// PrintJSONReport writes the report as indented JSON. The per-request log is omitted.
func PrintJSONReport(w io.Writer, report metrics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport writes the report as YAML with the same fields as the JSON form.
func PrintYAMLReport(w io.Writer, report metrics.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// PrintThresholdResults writes one line per threshold and a pass/fail tally.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		if r.Pass {
			passed++
		}
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	fmt.Fprintf(w, "%d/%d thresholds passed\n", passed, len(results))
}

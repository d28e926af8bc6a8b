package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/threshold"
)

// HTMLReportData contains everything the HTML template renders.
type HTMLReportData struct {
	GeneratedAt      string
	Title            string
	Target           string
	Report           metrics.Report
	ErrorRows        []metrics.KindCount
	StatusRows       []StatusRow
	ThresholdSummary *ThresholdSummary
	ScatterJSON      string
	CumulativeJSON   string
}

// StatusRow is one status code and how many responses carried it.
type StatusRow struct {
	Code  int
	Count int64
}

// ThresholdSummary tallies threshold results for the report header.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []threshold.Result
}

// scatterSeries is uPlot's column layout: x values plus one y column per
// series, with nulls where a point belongs to the other series.
type scatterSeries struct {
	Offsets   []float64  `json:"offsets"`
	Successes []*float64 `json:"successes"`
	Errors    []*float64 `json:"errors"`
}

type cumulativeSeries struct {
	Offsets   []float64 `json:"offsets"`
	Successes []int64   `json:"successes"`
	Errors    []int64   `json:"errors"`
}

func writeHTMLGraph(w io.Writer, report metrics.Report, meta GraphMeta) error {
	return GenerateHTMLReport(w, report, meta)
}

// GenerateHTMLReport writes a standalone page with summary cards, the
// latency scatter and cumulative outcome counts over time.
func GenerateHTMLReport(w io.Writer, report metrics.Report, meta GraphMeta) error {
	scatter := scatterSeries{}
	for _, s := range Samples(report) {
		ms := float64(s.Latency) / 1e6
		scatter.Offsets = append(scatter.Offsets, s.Offset.Seconds())
		if s.Failed {
			scatter.Successes = append(scatter.Successes, nil)
			scatter.Errors = append(scatter.Errors, &ms)
		} else {
			scatter.Successes = append(scatter.Successes, &ms)
			scatter.Errors = append(scatter.Errors, nil)
		}
	}
	scatterJSON, err := json.Marshal(scatter)
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}

	cumulative := cumulativeSeries{}
	for _, pt := range report.Cumulative() {
		cumulative.Offsets = append(cumulative.Offsets, pt.Offset.Seconds())
		cumulative.Successes = append(cumulative.Successes, pt.Successes)
		cumulative.Errors = append(cumulative.Errors, pt.Errors)
	}
	cumulativeJSON, err := json.Marshal(cumulative)
	if err != nil {
		return fmt.Errorf("failed to marshal cumulative counts: %w", err)
	}

	var summary *ThresholdSummary
	if len(meta.Thresholds) > 0 {
		summary = &ThresholdSummary{Total: len(meta.Thresholds), Results: meta.Thresholds}
		for _, r := range meta.Thresholds {
			if r.Pass {
				summary.Passed++
			} else {
				summary.Failed++
			}
		}
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Title:            meta.Title(report.Total),
		Target:           report.Target,
		Report:           report,
		ErrorRows:        report.ErrorBreakdown(),
		StatusRows:       statusRows(report.StatusCodes),
		ThresholdSummary: summary,
		ScatterJSON:      string(scatterJSON),
		CumulativeJSON:   string(cumulativeJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Microsecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func statusRows(codes map[int]int64) []StatusRow {
	rows := make([]StatusRow, 0, len(codes))
	for code, n := range codes {
		rows = append(rows, StatusRow{Code: code, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>hbench report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #1f2937 0%, #374151 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 1.6rem;
            white-space: pre-line;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #2563eb;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Title}}</h1>
            {{if .Target}}
            <div class="meta" style="margin-top: 5px;">Target: <a href="{{.Target}}" style="color: white; text-decoration: underline;">{{.Target}}</a></div>
            {{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Duration}}{{if .Report.RunID}} | Run: {{.Report.RunID}}{{end}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Total Requests</h3>
                    <div class="value">{{.Report.Total}}</div>
                    {{if .Report.Cancelled}}<div class="subvalue">stopped early, {{.Report.Requested}} requested</div>{{end}}
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Report.Successes}}</div>
                    <div class="subvalue">{{formatPercent .Report.Successes .Report.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Report.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Report.Failures .Report.Total}}%</div>
                </div>
                <div class="card">
                    <h3>Requests/sec</h3>
                    <div class="value">{{formatFloat .Report.RequestsPerSec}}</div>
                    <div class="subvalue">concurrency {{.Report.Concurrency}}</div>
                </div>
            </div>

            {{if .Report.Total}}
            <div class="section">
                <h2>Response Times</h2>
                <div class="chart-container">
                    <h3>Response Time by Request Start (ms)</h3>
                    <div id="scatter-chart" class="chart"></div>
                </div>
                <div class="chart-container">
                    <h3>Completed Requests</h3>
                    <div id="cumulative-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Latency Statistics</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Min</div>
                        <div class="value">{{formatDuration .Report.MinLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Mean</div>
                        <div class="value">{{formatDuration .Report.MeanLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Max</div>
                        <div class="value">{{formatDuration .Report.MaxLatency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatDuration .Report.P50Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatDuration .Report.P90Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P95</div>
                        <div class="value">{{formatDuration .Report.P95Latency}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatDuration .Report.P99Latency}}</div>
                    </div>
                </div>
            </div>

            {{if .ErrorRows}}
            <div class="section">
                <h2>Errors by Kind</h2>
                <table>
                    <thead>
                        <tr><th>Kind</th><th>Count</th><th>Share</th></tr>
                    </thead>
                    <tbody>
                        {{range .ErrorRows}}
                        <tr>
                            <td><span class="badge badge-error">{{.Kind.Label}}</span></td>
                            <td>{{.Count}}</td>
                            <td>{{formatPercent .Count $.Report.Total}}%</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .StatusRows}}
            <div class="section">
                <h2>Status Codes</h2>
                <table>
                    <thead>
                        <tr><th>Status</th><th>Count</th></tr>
                    </thead>
                    <tbody>
                        {{range .StatusRows}}
                        <tr><td>{{.Code}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold.Raw}}</td>
                            <td>{{.Threshold.Operator}} {{formatFloat .Threshold.Value}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">PASS</span>
                                {{else}}
                                <span class="badge badge-error">FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Report.Total}}
    <script>
        const scatter = JSON.parse({{.ScatterJSON}});
        const cumulative = JSON.parse({{.CumulativeJSON}});

        new uPlot({
            width: document.getElementById('scatter-chart').offsetWidth,
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Start (s)" },
                { label: "successes", stroke: "#808080", paths: () => null, points: { show: true, size: 5, fill: "#808080" } },
                { label: "errors", stroke: "#ef4444", paths: () => null, points: { show: true, size: 7, fill: "#ef4444" } }
            ],
            axes: [
                { label: "Time of Request (seconds)" },
                { label: "Response Time (ms)" }
            ]
        }, [scatter.offsets, scatter.successes, scatter.errors], document.getElementById('scatter-chart'));

        new uPlot({
            width: document.getElementById('cumulative-chart').offsetWidth,
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Time (s)" },
                { label: "successes", stroke: "#10b981", width: 2 },
                { label: "errors", stroke: "#ef4444", width: 2 }
            ],
            axes: [
                { label: "Time (seconds)" },
                { label: "Requests" }
            ]
        }, [cumulative.offsets, cumulative.successes, cumulative.errors], document.getElementById('cumulative-chart'));
    </script>
    {{end}}
</body>
</html>
`

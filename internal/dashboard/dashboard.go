// Package dashboard renders a live terminal view of a run in progress.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/hbench/hbench/internal/metrics"
)

// RunInfo holds the run parameters shown in the header.
type RunInfo struct {
	TargetURL   string        // Full target URL
	Requests    int           // Request budget (N)
	Concurrency int           // Number of concurrent workers (C)
	TimeLimit   time.Duration // Stop issuing after this long (0 = none)
	Rate        int           // Requests per second (0 = unlimited)
	Timeout     time.Duration // Per-request timeout
	Retries     int           // Retries per request
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI from the shared collector.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid           *ui.Grid
	progressGauge  *widgets.Gauge
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	errorList      *widgets.List
	statusList     *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	info           RunInfo
}

// New takes over the terminal. shutdownFunc is called when the user presses q
// or Ctrl+C; the caller still owns Stop.
func New(collector *metrics.Collector, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		info:           info,
	}

	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "hbench"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Requests Completed"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Outcomes"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Mean latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = formatLatency(metrics.Stats{})
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors by Kind"
	d.errorList.Rows = []string{"[No failures](fg:green)"}
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Codes"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.statusList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.5, d.errorList),
			ui.NewCol(0.5, d.statusList),
		),
	)
}

// Start begins the update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels the loop once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	if stats.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.MeanLatencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Latency | Mean: %.2fms | Max: %.2fms", stats.MeanLatencyMs, stats.MaxLatencyMs)
	}

	d.progressGauge.Percent = progressPercent(stats.Total, int64(d.info.Requests))
	d.progressGauge.Label = fmt.Sprintf("%d / %d", stats.Total, d.info.Requests)

	d.summaryPara.Text = fmt.Sprintf("Target: %s\n%s\nElapsed: %s | %.1f req/s",
		d.info.TargetURL, formatRunParams(d.info), elapsed.Round(time.Second), stats.RequestsPerSec)
	d.metricsPara.Text = formatOutcomes(stats)
	d.latencyPara.Text = formatLatency(stats)
	d.errorList.Rows = formatErrorRows(stats)
	d.statusList.Rows = formatStatusRows(stats)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func progressPercent(done, requested int64) int {
	if requested <= 0 {
		return 0
	}
	pct := int(done * 100 / requested)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatOutcomes(stats metrics.Stats) string {
	successRate := 0.0
	if stats.Total > 0 {
		successRate = float64(stats.Successes) / float64(stats.Total) * 100
	}
	return fmt.Sprintf("Completed:     %d\nSuccessful:    %d\nErrors:        %d\nSuccess Rate:  %.1f%%",
		stats.Total, stats.Successes, stats.Failures, successRate)
}

func formatLatency(stats metrics.Stats) string {
	return fmt.Sprintf("Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP95:  %.2fms\nP99:  %.2fms\nMax:  %.2fms",
		stats.MinLatencyMs, stats.MeanLatencyMs, stats.P50LatencyMs,
		stats.P95LatencyMs, stats.P99LatencyMs, stats.MaxLatencyMs)
}

func formatErrorRows(stats metrics.Stats) []string {
	rows := metrics.SortedKinds(stats.ErrorCounts)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Kind.Label(), row.Count))
	}
	return formatted
}

func formatStatusRows(stats metrics.Stats) []string {
	if len(stats.StatusCodes) == 0 {
		return []string{"Awaiting data"}
	}
	codes := make([]int, 0, len(stats.StatusCodes))
	for code := range stats.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	if len(codes) > 10 {
		codes = codes[:10]
	}
	formatted := make([]string, 0, len(codes))
	for _, code := range codes {
		color := "green"
		if code >= 400 {
			color = "red"
		}
		formatted = append(formatted, fmt.Sprintf("[%d](fg:%s) %d", code, color, stats.StatusCodes[code]))
	}
	return formatted
}

func formatRunParams(info RunInfo) string {
	var parts []string

	if info.Requests > 0 {
		parts = append(parts, fmt.Sprintf("Requests: %d", info.Requests))
	}
	if info.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", info.Concurrency))
	}
	if info.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", info.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if info.TimeLimit > 0 {
		parts = append(parts, fmt.Sprintf("Time limit: %s", info.TimeLimit))
	}
	if info.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", info.Timeout))
	}
	if info.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", info.Retries))
	}
	if info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", info.ConfigFile))
	}
	return strings.Join(parts, " | ")
}

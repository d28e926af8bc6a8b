package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/hbench/hbench/internal/metrics"
)

// ProgressReporter rewrites a single status line while a run is in progress.
type ProgressReporter struct {
	collector *metrics.Collector
	requested int64
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a reporter that refreshes every interval.
// requested is the run's request budget; zero hides the completion share.
func NewProgressReporter(collector *metrics.Collector, requested int64, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		requested: requested,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts updates and terminates the status line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	stats := p.collector.Stats(elapsed)
	line := fmt.Sprintf("\rRequests: %d", stats.Total)
	if p.requested > 0 {
		line += fmt.Sprintf("/%d (%.0f%%)", p.requested, float64(stats.Total)/float64(p.requested)*100)
	}
	line += fmt.Sprintf(" | Errors: %d | RPS: %.1f | P99: %.1fms",
		stats.Failures, stats.RequestsPerSec, stats.P99LatencyMs)
	return line
}

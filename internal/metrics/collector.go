package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Observer is notified of every recorded outcome after the collector lock is released.
// Implementations must be safe for concurrent use.
type Observer interface {
	Observe(o Outcome)
}

// Collector aggregates request outcomes from all workers in a thread-safe manner.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	successes   int64
	failures    int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	errorCounts map[ErrorKind]int64
	statusCodes map[int]int64
	entries     []Entry
	start       time.Time
	observers   []Observer
}

// Entry is one line of the result log, in completion order.
type Entry struct {
	Seq      int64     `json:"seq" yaml:"seq"`
	Recorded time.Time `json:"recorded" yaml:"recorded"`
	Outcome  Outcome   `json:"outcome" yaml:"outcome"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 10 minutes with 3 significant figures.
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &Collector{
		hist:        h,
		errorCounts: make(map[ErrorKind]int64),
		statusCodes: make(map[int]int64),
		start:       time.Now(),
	}
}

// AddObserver registers an observer. Call it before recording starts.
func (c *Collector) AddObserver(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Start marks the beginning of the run for rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Record appends an outcome to the result log and updates every running total
// in a single critical section.
func (c *Collector) Record(o Outcome) {
	c.mu.Lock()
	entry := Entry{
		Seq:      int64(len(c.entries)) + 1,
		Recorded: time.Now(),
		Outcome:  o,
	}
	c.entries = append(c.entries, entry)

	c.recordLatencyLocked(o.Latency)
	if o.StatusCode != 0 {
		c.statusCodes[o.StatusCode]++
	}
	if o.Success() {
		c.successes++
	} else {
		c.failures++
		c.errorCounts[o.Kind]++
	}
	observers := c.observers
	c.mu.Unlock()

	for _, obs := range observers {
		obs.Observe(o)
	}
}

func (c *Collector) recordLatencyLocked(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	us := latency.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)

	c.sumLatency += latency
	if len(c.entries) == 1 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

// Count returns the number of outcomes recorded so far.
func (c *Collector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.entries))
}

// Stats computes aggregated statistics without copying the result log.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked(elapsed)
}

// Snapshot returns a consistent point-in-time copy of all counters and the result log.
func (c *Collector) Snapshot(elapsed time.Duration) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{
		Stats:     c.statsLocked(elapsed),
		Started:   c.start,
		Entries:   make([]Entry, len(c.entries)),
		Latencies: make([]time.Duration, len(c.entries)),
	}
	copy(report.Entries, c.entries)
	for i, e := range c.entries {
		report.Latencies[i] = e.Outcome.Latency
	}
	return report
}

func (c *Collector) statsLocked(elapsed time.Duration) Stats {
	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.Duration = elapsed
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorCounts) > 0 {
		stats.ErrorCounts = make(map[ErrorKind]int64, len(c.errorCounts))
		for k, v := range c.errorCounts {
			stats.ErrorCounts[k] = v
		}
	}
	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[int]int64, len(c.statusCodes))
		for k, v := range c.statusCodes {
			stats.StatusCodes[k] = v
		}
	}

	stats.fillMillis()
	return stats
}

package metrics

import (
	"sort"
	"time"
)

// Stats represents aggregated metrics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms" yaml:"duration_ms"`

	ErrorCounts map[ErrorKind]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
	StatusCodes map[int]int64       `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
}

func (s *Stats) fillMillis() {
	s.MinLatencyMs = toMillis(s.MinLatency)
	s.MaxLatencyMs = toMillis(s.MaxLatency)
	s.MeanLatencyMs = toMillis(s.MeanLatency)
	s.P50LatencyMs = toMillis(s.P50Latency)
	s.P90LatencyMs = toMillis(s.P90Latency)
	s.P95LatencyMs = toMillis(s.P95Latency)
	s.P99LatencyMs = toMillis(s.P99Latency)
	s.DurationMs = toMillis(s.Duration)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Report is the immutable summary of a run, produced once every worker has joined.
type Report struct {
	Stats `yaml:",inline"`

	RunID       string    `json:"run_id" yaml:"run_id"`
	Target      string    `json:"target" yaml:"target"`
	Requested   int64     `json:"requested" yaml:"requested"`
	Concurrency int       `json:"concurrency" yaml:"concurrency"`
	Cancelled   bool      `json:"cancelled" yaml:"cancelled"`
	Started     time.Time `json:"started" yaml:"started"`

	// Latencies holds every recorded latency in completion order.
	Latencies []time.Duration `json:"-" yaml:"-"`
	Entries   []Entry         `json:"-" yaml:"-"`
}

// ErrorCount sums failures across every kind.
func (r Report) ErrorCount() int64 {
	var n int64
	for _, v := range r.ErrorCounts {
		n += v
	}
	return n
}

// Accounted is successes plus every per-kind failure; it equals Total for a consistent report.
func (r Report) Accounted() int64 {
	return r.Successes + r.ErrorCount()
}

// KindCount is one row of the per-kind failure breakdown.
type KindCount struct {
	Kind  ErrorKind
	Count int64
}

// ErrorBreakdown returns the non-zero failure kinds sorted by descending count.
func (r Report) ErrorBreakdown() []KindCount {
	return SortedKinds(r.ErrorCounts)
}

// SortedKinds flattens a kind->count map into rows sorted by descending count, then kind.
func SortedKinds(counts map[ErrorKind]int64) []KindCount {
	if len(counts) == 0 {
		return nil
	}
	rows := make([]KindCount, 0, len(counts))
	for k, v := range counts {
		if v == 0 {
			continue
		}
		rows = append(rows, KindCount{Kind: k, Count: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// Point is a cumulative success/error count at an offset from the run start.
type Point struct {
	Offset    time.Duration `json:"offset"`
	Successes int64         `json:"successes"`
	Errors    int64         `json:"errors"`
}

// Cumulative walks the result log in completion order and returns running totals.
func (r Report) Cumulative() []Point {
	if len(r.Entries) == 0 {
		return nil
	}
	start := r.Started
	if start.IsZero() {
		start = r.Entries[0].Recorded
	}
	points := make([]Point, 0, len(r.Entries))
	var ok, failed int64
	for _, e := range r.Entries {
		if e.Outcome.Success() {
			ok++
		} else {
			failed++
		}
		points = append(points, Point{
			Offset:    e.Recorded.Sub(start),
			Successes: ok,
			Errors:    failed,
		})
	}
	return points
}

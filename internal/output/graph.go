package output

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/hbench/hbench/internal/metrics"
	"github.com/hbench/hbench/internal/threshold"
)

// GraphMeta carries the run details a graph shows besides the report itself.
type GraphMeta struct {
	Host        string
	Name        string
	Concurrency int
	// Thresholds are shown by the HTML page only.
	Thresholds []threshold.Result
}

// NewGraphMeta derives the graph title parts from the output path and target URL.
func NewGraphMeta(path, target string, concurrency int) GraphMeta {
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}
	base := filepath.Base(path)
	return GraphMeta{
		Host:        host,
		Name:        strings.TrimSuffix(base, filepath.Ext(base)),
		Concurrency: concurrency,
	}
}

// Title is the two-line heading used by every graph format.
func (m GraphMeta) Title(requests int64) string {
	return fmt.Sprintf("hbench: %s\n%s n=%d, c=%d", m.Host, m.Name, requests, m.Concurrency)
}

// Sample is one request placed on the graph: when it started relative to the
// first request, and how long it took. Error kinds collapse into Failed.
type Sample struct {
	Offset  time.Duration
	Latency time.Duration
	Failed  bool
}

// Samples orders the report's requests by start time.
func Samples(report metrics.Report) []Sample {
	if len(report.Entries) == 0 {
		return nil
	}
	first := report.Entries[0].Outcome.Started
	for _, e := range report.Entries[1:] {
		if e.Outcome.Started.Before(first) {
			first = e.Outcome.Started
		}
	}

	samples := make([]Sample, len(report.Entries))
	for i, e := range report.Entries {
		samples[i] = Sample{
			Offset:  e.Outcome.Started.Sub(first),
			Latency: e.Outcome.Latency,
			Failed:  !e.Outcome.Success(),
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Offset < samples[j].Offset
	})
	return samples
}

type graphWriter func(w io.Writer, report metrics.Report, meta GraphMeta) error

var graphWriters = map[string]graphWriter{
	".png":  plotWriter("png"),
	".svg":  plotWriter("svg"),
	".pdf":  plotWriter("pdf"),
	".eps":  plotWriter("eps"),
	".jpg":  plotWriter("jpg"),
	".jpeg": plotWriter("jpeg"),
	".tif":  plotWriter("tif"),
	".tiff": plotWriter("tiff"),
	".html": writeHTMLGraph,
}

// CheckGraphPath fails fast on an extension no renderer handles, so a run is
// not wasted on a graph that cannot be written.
func CheckGraphPath(path string) error {
	if _, err := writerFor(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("graph directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("graph directory %s is not a directory", dir)
	}
	return nil
}

func writerFor(path string) (graphWriter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if w, ok := graphWriters[ext]; ok {
		return w, nil
	}
	supported := make([]string, 0, len(graphWriters))
	for k := range graphWriters {
		supported = append(supported, k)
	}
	sort.Strings(supported)
	return nil, fmt.Errorf("unsupported graph format %q (supported: %s)", ext, strings.Join(supported, ", "))
}

// RenderGraph writes the graph for report to path, choosing the format by
// extension. An exclusive lock on path+".lock" is held while writing, and the
// file is replaced atomically so readers never see a partial graph.
func RenderGraph(path string, report metrics.Report, meta GraphMeta) error {
	write, err := writerFor(path)
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock graph file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp, report, meta); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("render graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write graph file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("write graph file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write graph file: %w", err)
	}
	return nil
}

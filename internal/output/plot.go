package output

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hbench/hbench/internal/metrics"
)

var (
	successColor = color.Gray{Y: 128}
	errorColor   = color.RGBA{R: 255, A: 255}
	gridColor    = color.Gray{Y: 204}
)

// minLogLatencyMs keeps zero latencies plottable on a log axis.
const minLogLatencyMs = 0.001

// plotWriter renders the scatter graph in one of gonum/plot's image formats.
func plotWriter(format string) graphWriter {
	return func(w io.Writer, report metrics.Report, meta GraphMeta) error {
		p, err := newScatterPlot(report, meta)
		if err != nil {
			return err
		}
		wt, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, format)
		if err != nil {
			return err
		}
		_, err = wt.WriteTo(w)
		return err
	}
}

// useLogScale switches the latency axis to log when the slowest request is far
// above the mean, which otherwise flattens every other point onto the axis.
func useLogScale(report metrics.Report) bool {
	longest := report.MaxLatency.Seconds()
	mean := report.MeanLatency.Seconds()
	return longest-mean > mean*4
}

func newScatterPlot(report metrics.Report, meta GraphMeta) (*plot.Plot, error) {
	logScale := useLogScale(report)

	var ok, failed plotter.XYs
	for _, s := range Samples(report) {
		pt := plotter.XY{X: s.Offset.Seconds(), Y: float64(s.Latency) / 1e6}
		if logScale {
			pt.Y = math.Max(pt.Y, minLogLatencyMs)
		}
		if s.Failed {
			failed = append(failed, pt)
		} else {
			ok = append(ok, pt)
		}
	}

	p := plot.New()
	p.Title.Text = meta.Title(report.Total)
	p.X.Label.Text = "Time of Request (seconds)"
	p.Y.Label.Text = "Response Time (ms)"
	if logScale {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	grid := plotter.NewGrid()
	for _, ls := range []*draw.LineStyle{&grid.Vertical, &grid.Horizontal} {
		ls.Color = gridColor
		ls.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	}
	p.Add(grid)

	successes, err := plotter.NewScatter(ok)
	if err != nil {
		return nil, err
	}
	successes.GlyphStyle = draw.GlyphStyle{Color: successColor, Radius: vg.Points(2.5), Shape: draw.CircleGlyph{}}

	errs, err := plotter.NewScatter(failed)
	if err != nil {
		return nil, err
	}
	errs.GlyphStyle = draw.GlyphStyle{Color: errorColor, Radius: vg.Points(3), Shape: draw.TriangleGlyph{}}

	p.Add(successes, errs)
	p.Legend.Add("successes", successes)
	p.Legend.Add("errors", errs)
	p.Legend.Top = true
	return p, nil
}

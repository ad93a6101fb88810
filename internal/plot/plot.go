package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ferroci/internal/config"
	"ferroci/internal/files"
	"ferroci/pkg/contracts/domain"
)

// Format selects the image encoding
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ErrNothingToPlot is returned when there is neither a reference nor a test curve
var ErrNothingToPlot = errors.New("nothing to plot")

// testPalette colors the test curves in drop order
var testPalette = []string{
	"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd",
	"8c564b", "17becf", "bcbd22", "7f7f7f", "e377c2",
}

// Renderer draws the reference curve and the test curves on one chart
type Renderer struct {
	Width          int
	Height         int
	ReferenceColor string
	ReferenceWidth float64
	TestAlpha      float64
}

// NewRenderer returns a renderer with the standard styling: magenta
// reference drawn thick, test curves semi-transparent
func NewRenderer() *Renderer {
	return &Renderer{
		Width:          config.PlotWidth,
		Height:         config.PlotHeight,
		ReferenceColor: config.ReferenceLineColor,
		ReferenceWidth: config.ReferenceLineWidth,
		TestAlpha:      config.TestLineAlpha,
	}
}

// ParseFormat maps "png" and "svg" to a Format
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unsupported plot format %q", s)
	}
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Chart builds the chart. The reference is the first series so it leads
// the legend.
func (r *Renderer) Chart(ref *domain.SampleTable, tests []*domain.SampleTable) (*chart.Chart, error) {
	var series []chart.Series
	var xr, yr bounds

	if ref.Len() > 0 {
		xs, ys := curve(ref)
		xr.add(xs)
		yr.add(ys)
		series = append(series, chart.ContinuousSeries{
			Name:    "Reference: " + ref.Filename(),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: colorFromHex(r.ReferenceColor),
				StrokeWidth: r.ReferenceWidth,
			},
		})
	}

	alpha := uint8(r.TestAlpha * 255)
	for i, t := range tests {
		if t.Len() == 0 {
			continue
		}
		xs, ys := curve(t)
		xr.add(xs)
		yr.add(ys)
		series = append(series, chart.ContinuousSeries{
			Name:    t.Filename(),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: colorFromHex(testPalette[i%len(testPalette)]).WithAlpha(alpha),
				StrokeWidth: 1.5,
			},
		})
	}

	if len(series) == 0 {
		return nil, ErrNothingToPlot
	}

	ch := &chart.Chart{
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: "Potential / V"},
		YAxis: chart.YAxis{
			Name: "Current / A",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2e", f)
				}
				return ""
			},
		},
		Series: series,
	}
	if xr.flat() {
		ch.XAxis.Range = xr.padded()
	}
	if yr.flat() {
		ch.YAxis.Range = yr.padded()
	}
	ch.Elements = []chart.Renderable{chart.Legend(ch)}
	return ch, nil
}

// bounds tracks the value range of all series. go-chart refuses to draw an
// axis whose range is zero, which a flat current trace produces.
type bounds struct {
	lo, hi float64
	set    bool
}

func (b *bounds) add(values []float64) {
	for _, v := range values {
		if !b.set {
			b.lo, b.hi, b.set = v, v, true
			continue
		}
		b.lo = math.Min(b.lo, v)
		b.hi = math.Max(b.hi, v)
	}
}

func (b *bounds) flat() bool {
	return b.set && b.hi == b.lo
}

func (b *bounds) padded() *chart.ContinuousRange {
	pad := math.Abs(b.lo) * 0.05
	if pad == 0 {
		pad = 1e-9
	}
	return &chart.ContinuousRange{Min: b.lo - pad, Max: b.hi + pad}
}

// Render writes the chart to w
func (r *Renderer) Render(w io.Writer, format Format, ref *domain.SampleTable, tests []*domain.SampleTable) error {
	ch, err := r.Chart(ref, tests)
	if err != nil {
		return err
	}

	provider := chart.PNG
	if format == FormatSVG {
		provider = chart.SVG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}

// SaveFile atomically writes a PNG of the chart to path
func (r *Renderer) SaveFile(path string, ref *domain.SampleTable, tests []*domain.SampleTable) error {
	return files.WriteAtomicFunc(path, func(w io.Writer) error {
		return r.Render(w, FormatPNG, ref, tests)
	})
}

// curve returns the points of a table. A single point is widened to two so
// the axis range is never empty.
func curve(t *domain.SampleTable) ([]float64, []float64) {
	xs, ys := t.Potentials(), t.Currents()
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1e-9)
		ys = append(ys, ys[0])
	}
	return xs, ys
}

func colorFromHex(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

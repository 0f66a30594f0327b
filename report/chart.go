package report

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// palette colours groups in order; ids beyond its length wrap around.
var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
	{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
}

// Format selects the chart output encoding.
type Format int

const (
	SVG Format = iota
	PNG
)

// FormatFromPath picks PNG for a ".png" extension and SVG otherwise.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return PNG
	}
	return SVG
}

// canvasRenderer is implemented by both the svg and rasterizer renderers.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// Chart draws fixed-size plots. Dimensions are in millimetres.
type Chart struct {
	Width      float64
	Height     float64
	Margin     float64
	PointSize  float64
	Resolution canvas.Resolution // PNG only
}

// NewChart returns a 200×150 mm chart rendered at 150 DPI.
func NewChart() *Chart {
	return &Chart{
		Width:      200,
		Height:     150,
		Margin:     12,
		PointSize:  1.2,
		Resolution: canvas.DPI(150),
	}
}

// Scatter is a 2-D point cloud coloured by group. Anomalies, when set,
// mark points drawn with a black ring.
type Scatter struct {
	Points    [][]float64
	Groups    []int
	Anomalies []bool
}

// BoxPlot holds the values of each group, one box per key.
type BoxPlot map[int][]float64

// RenderScatter writes s in format f.
func (c *Chart) RenderScatter(w io.Writer, s Scatter, f Format) error {
	if len(s.Points) != len(s.Groups) {
		return fmt.Errorf("report: scatter: %d points but %d group labels", len(s.Points), len(s.Groups))
	}
	if s.Anomalies != nil && len(s.Anomalies) != len(s.Points) {
		return fmt.Errorf("report: scatter: %d points but %d anomaly flags", len(s.Points), len(s.Anomalies))
	}
	for i, p := range s.Points {
		if len(p) < 2 {
			return fmt.Errorf("report: scatter: point %d has %d coordinates, want 2", i, len(p))
		}
	}
	return c.render(w, f, func(r canvasRenderer) { c.drawScatter(r, s) })
}

// RenderBoxPlot writes b in format f.
func (c *Chart) RenderBoxPlot(w io.Writer, b BoxPlot, f Format) error {
	if len(b) == 0 {
		return fmt.Errorf("report: box plot: no groups")
	}
	return c.render(w, f, func(r canvasRenderer) { c.drawBoxPlot(r, b) })
}

// WriteFile creates path (and its directory) and hands the file to render.
func WriteFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("report: create chart dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %q: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (c *Chart) render(w io.Writer, f Format, draw func(canvasRenderer)) error {
	switch f {
	case PNG:
		rast := rasterizer.New(c.Width, c.Height, c.Resolution, canvas.DefaultColorSpace)
		c.drawFrame(rast)
		draw(rast)
		return png.Encode(w, rast)
	default:
		svgRenderer := svg.New(w, c.Width, c.Height, nil)
		c.drawFrame(svgRenderer)
		draw(svgRenderer)
		return svgRenderer.Close()
	}
}

// drawFrame paints the white background and the plot axes.
func (c *Chart) drawFrame(r canvasRenderer) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	r.RenderPath(canvas.Rectangle(c.Width, c.Height), bgStyle, canvas.Identity)

	axisStyle := canvas.DefaultStyle
	axisStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	axisStyle.Stroke = canvas.Paint{Color: canvas.Black}
	axisStyle.StrokeWidth = 0.3

	axes := &canvas.Path{}
	axes.MoveTo(c.Margin, c.Height-c.Margin)
	axes.LineTo(c.Margin, c.Margin)
	axes.LineTo(c.Width-c.Margin, c.Margin)
	r.RenderPath(axes, axisStyle, canvas.Identity)
}

// scale maps v from [lo, hi] onto [from, to]. A degenerate range maps to the middle.
func scale(v, lo, hi, from, to float64) float64 {
	if hi == lo {
		return (from + to) / 2
	}
	return from + (v-lo)/(hi-lo)*(to-from)
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func groupColor(g int) color.RGBA {
	if g < 0 {
		g = -g
	}
	return palette[g%len(palette)]
}

func (c *Chart) drawScatter(r canvasRenderer, s Scatter) {
	if len(s.Points) == 0 {
		return
	}
	xs := make([]float64, len(s.Points))
	ys := make([]float64, len(s.Points))
	for i, p := range s.Points {
		xs[i], ys[i] = p[0], p[1]
	}
	xlo, xhi := bounds(xs)
	ylo, yhi := bounds(ys)

	for i := range s.Points {
		cx := scale(xs[i], xlo, xhi, c.Margin, c.Width-c.Margin)
		cy := scale(ys[i], ylo, yhi, c.Margin, c.Height-c.Margin)

		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: groupColor(s.Groups[i])}
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		if s.Anomalies != nil && s.Anomalies[i] {
			style.Stroke = canvas.Paint{Color: canvas.Black}
			style.StrokeWidth = 0.4
		}

		marker := canvas.Circle(c.PointSize)
		marker = marker.Translate(cx, cy)
		r.RenderPath(marker, style, canvas.Identity)
	}
}

func (c *Chart) drawBoxPlot(r canvasRenderer, b BoxPlot) {
	groups := make([]int, 0, len(b))
	var all []float64
	for g, vals := range b {
		groups = append(groups, g)
		all = append(all, vals...)
	}
	sort.Ints(groups)
	if len(all) == 0 {
		return
	}
	lo, hi := bounds(all)

	slot := (c.Width - 2*c.Margin) / float64(len(groups))
	boxWidth := slot * 0.5
	toY := func(v float64) float64 { return scale(v, lo, hi, c.Margin, c.Height-c.Margin) }

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: canvas.Black}
	lineStyle.StrokeWidth = 0.3

	for i, g := range groups {
		vals := append([]float64(nil), b[g]...)
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		q1, med, q3 := quartile(vals, 0.25), quartile(vals, 0.5), quartile(vals, 0.75)
		center := c.Margin + slot*(float64(i)+0.5)
		left := center - boxWidth/2

		whisker := &canvas.Path{}
		whisker.MoveTo(center, toY(vals[0]))
		whisker.LineTo(center, toY(q1))
		whisker.MoveTo(center, toY(q3))
		whisker.LineTo(center, toY(vals[len(vals)-1]))
		r.RenderPath(whisker, lineStyle, canvas.Identity)

		boxStyle := canvas.DefaultStyle
		boxStyle.Fill = canvas.Paint{Color: groupColor(g)}
		boxStyle.Stroke = canvas.Paint{Color: canvas.Black}
		boxStyle.StrokeWidth = 0.3
		height := math.Max(toY(q3)-toY(q1), 0.2)
		box := canvas.Rectangle(boxWidth, height)
		box = box.Translate(left, toY(q1))
		r.RenderPath(box, boxStyle, canvas.Identity)

		median := &canvas.Path{}
		median.MoveTo(left, toY(med))
		median.LineTo(left+boxWidth, toY(med))
		r.RenderPath(median, lineStyle, canvas.Identity)
	}
}

// quartile interpolates between closest ranks of the sorted values.
func quartile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Package render draws box plots and correlation heatmaps as PNG images with gonum/plot.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
)

// Options controls chart size and colors. Zero values select the defaults.
type Options struct {
	// Width and Height in inches. Heatmaps grow with the number of columns when unset.
	Width    float64
	Height   float64
	Colormap string
}

// ErrNothingToDraw is returned when every selected series is empty.
var ErrNothingToDraw = errors.New("no non-missing values to draw")

// BoxPlot writes a PNG box plot of bd to w.
func BoxPlot(w io.Writer, bd *analysis.BoxData, opt Options) error {
	p := plot.New()
	p.Title.Text = "Boxplot"
	p.Y.Label.Text = "Value"

	drawn := 0
	if bd.GroupBy == "" {
		for i, b := range bd.Boxes {
			values := finite(b.Values)
			if len(values) == 0 {
				continue
			}
			box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), values)
			if err != nil {
				return fmt.Errorf("box %s: %w", b.Variable, err)
			}
			box.FillColor = plotutil.Color(i)
			p.Add(box)
			drawn++
		}
	} else {
		p.Title.Text = "Grouped boxplot"
		p.Legend.Top = true
		p.Legend.Add(bd.GroupBy)
		n := len(bd.Groups)
		width := vg.Points(math.Max(6, 48/float64(n)))
		groupIndex := make(map[string]int, n)
		for gi, g := range bd.Groups {
			groupIndex[g] = gi
			p.Legend.Add(g, swatch{plotutil.Color(gi)})
		}
		varIndex := make(map[string]int, len(bd.Variables))
		for vi, v := range bd.Variables {
			varIndex[v] = vi
		}
		for _, b := range bd.Boxes {
			values := finite(b.Values)
			if len(values) == 0 {
				continue
			}
			gi := groupIndex[b.Group]
			box, err := plotter.NewBoxPlot(width, float64(varIndex[b.Variable]), values)
			if err != nil {
				return fmt.Errorf("box %s/%s: %w", b.Variable, b.Group, err)
			}
			box.Offset = (vg.Length(gi) - vg.Length(n-1)/2) * width
			box.FillColor = plotutil.Color(gi)
			p.Add(box)
			drawn++
		}
	}
	if drawn == 0 {
		return ErrNothingToDraw
	}
	p.NominalX(bd.Variables...)

	width, height := opt.Width, opt.Height
	if width <= 0 {
		width = 8
	}
	if height <= 0 {
		height = 5
	}
	return writePNG(w, p, width, height)
}

// Heatmap writes a PNG heatmap of m to w with a "%.2f" annotation in every cell.
// The first column is drawn in the top row.
func Heatmap(w io.Writer, m *analysis.CorrMatrix, opt Options) error {
	n := len(m.Columns)
	if n < 2 {
		return fmt.Errorf("heatmap needs at least two columns, got %d", n)
	}
	pal, err := LookupColormap(opt.Colormap)
	if err != nil {
		return err
	}
	grid := corrGrid{m: m}
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 230}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Correlation heatmap (%s)", m.Method)
	p.Add(hm)

	xys := make(plotter.XYs, 0, n*n)
	texts := make([]string, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			xys = append(xys, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			texts = append(texts, Annotation(grid.Z(c, r)))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return fmt.Errorf("heatmap labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(labels)

	ylabels := make([]string, n)
	for i, name := range m.Columns {
		ylabels[n-1-i] = name
	}
	p.NominalX(m.Columns...)
	p.NominalY(ylabels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight

	width, height := opt.Width, opt.Height
	if width <= 0 {
		width = math.Max(6, float64(n)*0.8)
	}
	if height <= 0 {
		height = math.Max(4, float64(n)*0.6)
	}
	return writePNG(w, p, width, height)
}

// Annotation formats one heatmap cell.
func Annotation(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.2f", v)
}

func writePNG(w io.Writer, p *plot.Plot, width, height float64) error {
	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func finite(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// corrGrid adapts a matrix to plotter.GridXYZ, flipping rows so column 0 is on top.
type corrGrid struct{ m *analysis.CorrMatrix }

func (g corrGrid) Dims() (c, r int) {
	n := len(g.m.Columns)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := len(g.m.Columns)
	return g.m.Values[n-1-r][c]
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

// swatch is a filled legend thumbnail.
type swatch struct{ c color.Color }

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.c, c.ClipPolygonY(pts))
}

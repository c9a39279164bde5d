package summary

import (
	"image/color"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// CorrelationPlotFile is the file the spot-check run writes the heatmap to.
const CorrelationPlotFile = "tmp-correlation-matrix.png"

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 9 * vg.Inch
	barWidth   = 1.2 * vg.Inch
)

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 of the
// matrix is drawn at the top.
type corrGrid struct {
	m mat.Symmetric
}

func (g corrGrid) Dims() (c, r int) {
	n := g.m.SymmetricDim()
	return n, n
}

func (g corrGrid) Z(c, r int) float64 { return g.m.At(g.m.SymmetricDim()-1-r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// PlotCorrelation draws corr as a heatmap with a colour bar over [-1, 1]
// and saves it as PNG to path. names label both axes.
func PlotCorrelation(corr mat.Symmetric, names []string, path string) error {
	n := corr.SymmetricDim()
	if n == 0 {
		return errors.ErrEmptyData
	}
	if len(names) != n {
		return errors.NewDimensionError("PlotCorrelation", n, len(names), 1)
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(-1)
	cmap.SetMax(1)

	heat := plotter.NewHeatMap(corrGrid{corr}, cmap.Palette(255))
	heat.Min, heat.Max = -1, 1
	heat.NaN = color.White

	p := plot.New()
	p.Title.Text = "Correlation matrix"
	p.Add(heat)
	p.X.Tick.Marker = nameTicks(names, false)
	p.Y.Tick.Marker = nameTicks(names, true)
	p.X.Tick.Label.Rotation = 1.5708
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.Font.Size = vg.Points(5)
	p.Y.Tick.Label.Font.Size = vg.Points(5)

	bar := plot.New()
	bar.HideX()
	bar.Y.Padding = 0
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	img := vgimg.New(plotWidth, plotHeight)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	bar.Draw(draw.Crop(dc, plotWidth-barWidth, 0, vg.Inch, -vg.Inch))

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(file.Close(), "close %s", path)
}

// nameTicks puts one labelled tick on every cell. The y axis runs bottom
// up, so its labels are reversed.
func nameTicks(names []string, reversed bool) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, len(names))
	for i, name := range names {
		label := name
		if reversed {
			label = names[len(names)-1-i]
		}
		ticks[i] = plot.Tick{Value: float64(i), Label: label}
	}
	return ticks
}

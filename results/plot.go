package results

import (
	"fmt"
	"image/color"

	"github.com/cepro/flexarea/montecarlo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	feasibleColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	infeasibleColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	operatingColor  = color.RGBA{A: 255}
)

func xys(p, q []float64) plotter.XYs {
	points := make(plotter.XYs, len(p))
	for i := range p {
		points[i].X = p[i]
		points[i].Y = q[i]
	}
	return points
}

// PlotArea saves a scatter plot of the feasible and infeasible samples, and the operating point of the network, to
// the given path. The image format follows the file extension (png, svg, pdf, ...).
func PlotArea(path string, title string, outcome montecarlo.Outcome, operatingP, operatingQ float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "P [MW]"
	p.Y.Label.Text = "Q [MVAR]"
	p.Add(plotter.NewGrid())

	layers := []struct {
		name   string
		points plotter.XYs
		color  color.Color
		shape  draw.GlyphDrawer
	}{
		{"Feasible", xys(montecarlo.PQ(outcome.Feasible)), feasibleColor, draw.CircleGlyph{}},
		{"Infeasible", xys(montecarlo.PQ(outcome.Infeasible)), infeasibleColor, draw.CircleGlyph{}},
		{"Operating point", plotter.XYs{{X: operatingP, Y: operatingQ}}, operatingColor, draw.CrossGlyph{}},
	}
	for _, layer := range layers {
		if len(layer.points) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(layer.points)
		if err != nil {
			return fmt.Errorf("create %s scatter: %w", layer.name, err)
		}
		scatter.GlyphStyle.Color = layer.color
		scatter.GlyphStyle.Shape = layer.shape
		scatter.GlyphStyle.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add(layer.name, scatter)
	}

	err := p.Save(6*vg.Inch, 6*vg.Inch, path)
	if err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

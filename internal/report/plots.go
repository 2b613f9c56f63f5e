package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// Plot dimensions.
const (
	plotWidth  = 7 * vg.Inch
	plotHeight = 4.5 * vg.Inch
)

// namedPlot is a plot and the file name it is saved under.
type namedPlot struct {
	name string
	p    *plot.Plot
}

var stages = []dataset.Stage{dataset.Adult, dataset.Subadult}

func translucent(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 64}
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

// addBand draws the interval as a shaded ribbon under the median line.
func addBand(p *plot.Plot, b simulate.Band, label string, c color.Color) error {
	n := len(b.X)
	outline := make(plotter.XYs, 0, 2*n)
	median := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		outline = append(outline, plotter.XY{X: b.X[i], Y: b.Upper[i]})
		median[i] = plotter.XY{X: b.X[i], Y: b.Median[i]}
	}
	for i := n - 1; i >= 0; i-- {
		outline = append(outline, plotter.XY{X: b.X[i], Y: b.Lower[i]})
	}

	ribbon, err := plotter.NewPolygon(outline)
	if err != nil {
		return fmt.Errorf("ribbon %s: %w", b.Name, err)
	}
	ribbon.Color = translucent(c)
	ribbon.LineStyle.Width = 0

	line, err := plotter.NewLine(median)
	if err != nil {
		return fmt.Errorf("median %s: %w", b.Name, err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)

	p.Add(ribbon, line)
	p.Legend.Add(label, line, ribbon)
	return nil
}

func addZeroLine(p *plot.Plot) {
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.Color = color.Gray{Y: 120}
	zero.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(zero)
}

func addPoints(p *plot.Plot, pts plotter.XYs, label string, c color.Color) error {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter %s: %w", label, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	if label != "" {
		p.Legend.Add(label, s)
	}
	return nil
}

func stageBands(title, x, y string, bands map[dataset.Stage]simulate.Band, zero bool) (*plot.Plot, error) {
	p := newPlot(title, x, y)
	if zero {
		addZeroLine(p)
	}
	for i, s := range stages {
		if err := addBand(p, bands[s], s.String(), plotutil.Color(i)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func singleBand(title, x, y string, b simulate.Band, zero bool) (*plot.Plot, error) {
	p := newPlot(title, x, y)
	if zero {
		addZeroLine(p)
	}
	if err := addBand(p, b, b.Name, plotutil.Color(0)); err != nil {
		return nil, err
	}
	return p, nil
}

func explorationPlots(e *analysis.ExplorationResult) ([]namedPlot, error) {
	title := fmt.Sprintf("Exploration, model %s", e.Selected.Label)
	prob, err := stageBands(title, e.UrbanVar, "P(explore)", e.Probability, false)
	if err != nil {
		return nil, err
	}
	for i, s := range stages {
		var pts plotter.XYs
		for _, c := range e.Counts {
			if c.Stage != s {
				continue
			}
			u := c.Site.Urban50
			if e.UrbanVar == analysis.VarUrban10 {
				u = c.Site.Urban10
			}
			pts = append(pts, plotter.XY{X: u, Y: c.Proportion()})
		}
		if len(pts) == 0 {
			continue
		}
		if err := addPoints(prob, pts, "", plotutil.Color(i)); err != nil {
			return nil, err
		}
	}

	diff, err := singleBand(title, e.UrbanVar, "subadult - adult", e.StageDifference, true)
	if err != nil {
		return nil, err
	}
	return []namedPlot{
		{"exploration_probability.png", prob},
		{"exploration_stage_difference.png", diff},
	}, nil
}

func perceptionPlots(r *analysis.PerceptionResult) ([]namedPlot, error) {
	title := fmt.Sprintf("Perception, model %s", r.Selected.Label)
	atRef := fmt.Sprintf("%s (at %g cm)", r.UrbanVar, r.ReferenceDistance)

	det, err := stageBands(title, atRef, "detectability", r.DetectabilityByUrban, true)
	if err != nil {
		return nil, err
	}
	bias, err := stageBands(title, atRef, "response bias", r.BiasByUrban, true)
	if err != nil {
		return nil, err
	}
	dist, err := stageBands(title, fmt.Sprintf("distance, cm (%s = 0)", r.UrbanVar), "detectability", r.DetectabilityByDistance, true)
	if err != nil {
		return nil, err
	}
	return []namedPlot{
		{"perception_detectability.png", det},
		{"perception_bias.png", bias},
		{"perception_distance.png", dist},
	}, nil
}

func dissectionPlots(d *analysis.DissectionResult) ([]namedPlot, error) {
	title := fmt.Sprintf("Dissection, model %s", d.Selected.Label)

	allo := newPlot(title, "scaled shell diameter", "scaled foot mass")
	pts := make(plotter.XYs, len(d.Size))
	for i := range d.Size {
		pts[i] = plotter.XY{X: d.Size[i], Y: d.Mass[i]}
	}
	if err := addPoints(allo, pts, "snails", plotutil.Color(0)); err != nil {
		return nil, err
	}
	coef := d.Selected.Coef
	curve := plotter.NewFunction(func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return model.PowerLawMean(coef, x, 0)
	})
	curve.Color = plotutil.Color(1)
	curve.Width = vg.Points(1.5)
	allo.Add(curve)
	allo.Legend.Add(fmt.Sprintf("fit at %s = 0", d.UrbanVar), curve)

	pf, err := singleBand(title, d.UrbanVar, "prefactor a", d.Prefactor, false)
	if err != nil {
		return nil, err
	}
	ex, err := singleBand(title, d.UrbanVar, "exponent b", d.Exponent, false)
	if err != nil {
		return nil, err
	}
	mass, err := singleBand(title, d.UrbanVar, fmt.Sprintf("scaled foot mass at size %g", d.ReferenceSize), d.MassAtRef, false)
	if err != nil {
		return nil, err
	}
	return []namedPlot{
		{"dissection_allometry.png", allo},
		{"dissection_prefactor.png", pf},
		{"dissection_exponent.png", ex},
		{"dissection_mass.png", mass},
	}, nil
}

// correlogramPlot draws Moran's I per distance class; significant classes
// are drawn as filled points.
func correlogramPlot(domain string, c *spatial.Correlogram) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("Residual correlogram, %s model %s", domain, c.Label), "distance (m)", "Moran's I")
	var all, sig plotter.XYs
	for _, b := range c.Bins {
		pt := plotter.XY{X: b.MeanDistance, Y: b.MoranI}
		all = append(all, pt)
		if b.Significant(0.05) {
			sig = append(sig, pt)
		}
	}
	if len(all) == 0 {
		return p, nil
	}
	expected := c.Bins[0].Expected
	ref := plotter.NewFunction(func(float64) float64 { return expected })
	ref.Color = color.Gray{Y: 120}
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(ref)

	line, err := plotter.NewLine(all)
	if err != nil {
		return nil, err
	}
	line.Color = plotutil.Color(0)
	p.Add(line)

	ring, err := plotter.NewScatter(all)
	if err != nil {
		return nil, err
	}
	ring.GlyphStyle.Shape = draw.RingGlyph{}
	ring.GlyphStyle.Radius = vg.Points(3)
	p.Add(ring)
	p.Legend.Add("I", line, ring)

	if len(sig) > 0 {
		filled, err := plotter.NewScatter(sig)
		if err != nil {
			return nil, err
		}
		filled.GlyphStyle.Shape = draw.CircleGlyph{}
		filled.GlyphStyle.Radius = vg.Points(3)
		p.Add(filled)
		p.Legend.Add("p < 0.05", filled)
	}
	return p, nil
}

// buildPlots builds every plot of a result.
func buildPlots(res *analysis.Result) ([]namedPlot, error) {
	var out []namedPlot
	type corr struct {
		domain string
		c      *spatial.Correlogram
	}
	var corrs []corr

	if e := res.Exploration; e != nil {
		ps, err := explorationPlots(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
		corrs = append(corrs, corr{analysis.StageExploration, e.Correlogram})
	}
	if pr := res.Perception; pr != nil {
		ps, err := perceptionPlots(pr)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
		corrs = append(corrs, corr{analysis.StagePerception, pr.Correlogram})
	}
	if d := res.Dissection; d != nil {
		ps, err := dissectionPlots(d)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
		corrs = append(corrs, corr{analysis.StageDissection, d.Correlogram})
	}

	for _, c := range corrs {
		if c.c == nil {
			continue
		}
		p, err := correlogramPlot(c.domain, c.c)
		if err != nil {
			return nil, err
		}
		out = append(out, namedPlot{fmt.Sprintf("correlogram_%s.png", c.domain), p})
	}
	return out, nil
}

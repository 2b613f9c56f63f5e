package analysis

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// Family is a set of competing fits of one response on the same data.
type Family struct {
	Name  string
	Fits  []*model.Fit // declaration order
	Table model.Table
	Tests map[string][]model.TermTest
}

// Fit returns the fit with the given label, or nil.
func (f *Family) Fit(label string) *model.Fit {
	for _, fit := range f.Fits {
		if fit.Label == label {
			return fit
		}
	}
	return nil
}

// linearSpec is one candidate of a binomial or Gaussian family.
type linearSpec struct {
	label string
	terms []model.Term
}

// rank fills in the AICc table and per-term tests of a fitted family.
func (f *Family) rank(frame *model.Frame) error {
	table, err := model.Rank(f.Name, f.Fits)
	if err != nil {
		return err
	}
	f.Table = table
	f.Tests = make(map[string][]model.TermTest, len(f.Fits))
	for _, fit := range f.Fits {
		tests, err := model.TypeII(frame, fit)
		if err != nil {
			return err
		}
		f.Tests[fit.Label] = tests
	}
	for _, r := range table.Rows {
		monitoring.Logf("%s: %-5s k=%-2d AICc=%9.3f delta=%7.3f weight=%.3f", f.Name, r.Label, r.K, r.AICc, r.Delta, r.Weight)
	}
	return nil
}

// selectFit returns the fit the reports are drawn from.
func (f *Family) selectFit(label string) (*model.Fit, error) {
	fit := f.Fit(label)
	if fit == nil {
		return nil, fmt.Errorf("%s: no model labelled %q", f.Name, label)
	}
	if lowest := f.Table.Lowest(); lowest != label {
		monitoring.Logf("%s: reporting %s; lowest AICc is %s", f.Name, label, lowest)
	}
	return fit, nil
}

// Streams of the random source, one per consumer, so results do not depend
// on the order the domain fits finish in.
const (
	streamExplorationDraws uint64 = iota + 1
	streamPerceptionDraws
	streamDissectionDraws
	streamExplorationPerm
	streamPerceptionPerm
	streamDissectionPerm
	streamPerceptionIndependent
	streamDissectionIndependent
)

func source(seed, stream uint64) rand.Source {
	return rand.NewPCG(seed, stream)
}

// drawCoefficients draws coefficient vectors jointly from the fit's
// covariance.
func drawCoefficients(fit *model.Fit, n int, src rand.Source) (*mat.Dense, error) {
	draws, err := simulate.DrawJoint(fit.Coef, fit.Cov, n, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fit.Label, err)
	}
	return draws, nil
}

// CovarianceCheck contrasts the interval of a derived quantity under joint
// coefficient draws with the interval obtained when the coefficient
// covariance is ignored.
type CovarianceCheck struct {
	Quantity    string
	Joint       simulate.Summary
	Independent simulate.Summary
}

// WidthRatio is the independent interval width over the joint width.
func (c CovarianceCheck) WidthRatio() float64 {
	return c.Independent.Width() / c.Joint.Width()
}

func covarianceCheck(quantity string, fit *model.Fit, joint mat.Matrix, f func([]float64) float64, opts Options, src rand.Source) (CovarianceCheck, error) {
	indep, err := simulate.DrawIndependent(fit.Coef, fit.SE(), opts.Draws, src)
	if err != nil {
		return CovarianceCheck{}, fmt.Errorf("%s: %w", fit.Label, err)
	}
	c := CovarianceCheck{
		Quantity:    quantity,
		Joint:       simulate.Scalar(joint, f, opts.IntervalWidth),
		Independent: simulate.Scalar(indep, f, opts.IntervalWidth),
	}
	monitoring.Stagef(StageUncertainty, "%s %s: interval width %.4f jointly, %.4f ignoring covariance",
		fit.Label, quantity, c.Joint.Width(), c.Independent.Width())
	return c, nil
}

// SiteResidual is the mean residual of the rows recorded at one site.
type SiteResidual struct {
	Site     string
	X, Y     float64
	Residual float64
	Rows     int
}

// siteResiduals averages row residuals per site. Rows sharing a site sit at
// distance zero and would otherwise swamp the first distance class.
func siteResiduals(sites []dataset.Site, resid []float64) []SiteResidual {
	idx := make(map[string]int)
	var out []SiteResidual
	for i, s := range sites {
		j, ok := idx[s.Name]
		if !ok {
			j = len(out)
			idx[s.Name] = j
			out = append(out, SiteResidual{Site: s.Name, X: s.X, Y: s.Y})
		}
		out[j].Residual += resid[i]
		out[j].Rows++
	}
	for j := range out {
		out[j].Residual /= float64(out[j].Rows)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Site < out[b].Site })
	return out
}

// residualCorrelogram computes the correlogram of a fit's site-level
// residuals. The correlogram is a diagnostic: when it cannot be computed the
// failure is logged and nil is returned.
func residualCorrelogram(fit *model.Fit, sites []dataset.Site, s spatial.Settings, src rand.Source) *spatial.Correlogram {
	res := siteResiduals(sites, fit.Residuals)
	x := make([]float64, len(res))
	y := make([]float64, len(res))
	z := make([]float64, len(res))
	for i, r := range res {
		x[i], y[i], z[i] = r.X, r.Y, r.Residual
	}
	c, err := spatial.Compute(fit.Label, x, y, z, s, src)
	if err != nil {
		monitoring.Warnf(StageResiduals, "%s: skipping residual correlogram: %v", fit.Label, err)
		return nil
	}
	if c.AnySignificant(0.05) {
		monitoring.Warnf(StageResiduals, "%s: residuals show spatial autocorrelation in at least one distance class", fit.Label)
	}
	return c
}

// urbanRange returns the range of an urbanisation variable over the rows of
// a domain frame.
func urbanRange(sf *siteFrame, v string) (lo, hi float64) {
	col, ok := sf.frame.Col(v)
	if !ok || len(col) == 0 {
		return 0, 0
	}
	return minMax(col)
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

package analysis

import (
	"fmt"
	"math"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// DissectionResult holds the allometry family and its derived curves.
// Diameter and foot mass are expressed relative to their sample means.
type DissectionResult struct {
	Family      *Family
	Scaling     Scaling
	Selected    *model.Fit
	UrbanVar    string
	Correlogram *spatial.Correlogram

	// Scaled observations, for scatter plots.
	Size, Mass, Urban []float64

	ReferenceSize float64

	Prefactor simulate.Band // a(u)
	Exponent  simulate.Band // b(u)
	MassAtRef simulate.Band // a(u) * ReferenceSize^b(u)

	// Scaled foot mass at the reference size and urbanisation 0.
	Covariance CovarianceCheck
}

// FitDissection fits the baseline and both covariate power-law models.
func FitDissection(rows []dataset.Joined[dataset.DissectionRecord], start model.PowerLawStart, settings model.PowerLawSettings) (*Family, *siteFrame, Scaling, error) {
	sf, sc, err := dissectionFrame(rows)
	if err != nil {
		return nil, nil, sc, err
	}
	fam := &Family{Name: StageDissection}
	for _, spec := range []struct {
		label     string
		covariate string
	}{
		{LabelBaseline, ""},
		{Label10, VarUrban10},
		{Label50, VarUrban50},
	} {
		fit, err := model.FitPowerLaw(spec.label, sf.frame, model.PowerLawSpec{
			Response:  VarMass,
			Size:      VarSize,
			Covariate: spec.covariate,
		}, start, settings)
		if err != nil {
			return nil, nil, sc, err
		}
		fam.Fits = append(fam.Fits, fit)
	}
	if err := fam.rank(sf.frame); err != nil {
		return nil, nil, sc, err
	}
	return fam, sf, sc, nil
}

// RunDissection fits, ranks and summarises the dissection family.
func RunDissection(p *Prepared, opts Options) (*DissectionResult, error) {
	fam, sf, sc, err := FitDissection(p.Dissection, opts.NLSStart, opts.NLS)
	if err != nil {
		return nil, err
	}
	fit, err := fam.selectFit(opts.DissectionModel)
	if err != nil {
		return nil, err
	}
	res := &DissectionResult{
		Family:        fam,
		Scaling:       sc,
		Selected:      fit,
		UrbanVar:      urbanVar(fit.Label),
		ReferenceSize: opts.ReferenceSize,
	}
	res.Size, _ = sf.frame.Col(VarSize)
	res.Mass, _ = sf.frame.Col(VarMass)
	res.Urban, _ = sf.frame.Col(res.UrbanVar)

	res.Correlogram = residualCorrelogram(fit, sf.sites, opts.Correlogram, source(opts.Seed, streamDissectionPerm))

	draws, err := drawCoefficients(fit, opts.Draws, source(opts.Seed, streamDissectionDraws))
	if err != nil {
		return nil, err
	}
	lo, hi := urbanRange(sf, res.UrbanVar)
	grid := simulate.Grid(lo, hi, opts.GridPoints)
	ref := opts.ReferenceSize

	res.Prefactor = simulate.Curve("prefactor a", draws, grid, func(coef []float64, u float64) float64 {
		a, _ := model.PowerLawParams(coef, u)
		return a
	}, opts.IntervalWidth)
	res.Exponent = simulate.Curve("exponent b", draws, grid, func(coef []float64, u float64) float64 {
		_, b := model.PowerLawParams(coef, u)
		return b
	}, opts.IntervalWidth)
	res.MassAtRef = simulate.Curve("scaled foot mass", draws, grid, func(coef []float64, u float64) float64 {
		return model.PowerLawMean(coef, ref, u)
	}, opts.IntervalWidth)

	res.Covariance, err = covarianceCheck(fmt.Sprintf("scaled foot mass at size %g", ref), fit, draws,
		func(coef []float64) float64 { return model.PowerLawMean(coef, ref, 0) },
		opts, source(opts.Seed, streamDissectionIndependent))
	if err != nil {
		return nil, err
	}

	monitoring.Stagef(StageUncertainty, "dissection %s: exponent %.3f to %.3f over %s, variance power %.3f (SE %.3f)",
		fit.Label, res.Exponent.Median[0], res.Exponent.Median[len(grid)-1], res.UrbanVar, fit.VarPower, fit.VarPowerSE)
	if math.IsNaN(fit.VarPowerSE) {
		monitoring.Warnf(StageDissection, "%s: variance power standard error is not finite", fit.Label)
	}
	return res, nil
}

package analysis

import (
	"fmt"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// PerceptionResult holds both perception families and the derived curves of
// the selected corrected model.
//
// Detectability is the expected response to the habitat stimulus minus the
// expected response to the control. Response bias is the expected control
// response minus 0.5, the response of a snail moving at random.
type PerceptionResult struct {
	Historical  *Family
	Corrected   *Family
	Selected    *model.Fit
	UrbanVar    string
	Correlogram *spatial.Correlogram

	ReferenceDistance float64

	// Against urbanisation at the reference distance, per stage.
	DetectabilityByUrban map[dataset.Stage]simulate.Band
	BiasByUrban          map[dataset.Stage]simulate.Band
	// Against distance at urbanisation 0, per stage.
	DetectabilityByDistance map[dataset.Stage]simulate.Band

	// Adult detectability at the reference distance and urbanisation 0.
	Covariance CovarianceCheck
}

// historicalSpecs add urbanisation and its interaction with stage to the
// stage*stimulus*distance baseline.
func historicalSpecs() []linearSpec {
	base := model.Crossed(VarStage, VarStimulus, VarDistance)
	return []linearSpec{
		{LabelBaseline, base},
		{LabelHistorical10, model.Union(base, model.Crossed(VarStage, VarUrban10))},
		{LabelHistorical50, model.Union(base, model.Crossed(VarStage, VarUrban50))},
	}
}

// correctedSpecs cross urbanisation with every other factor.
func correctedSpecs() []linearSpec {
	return []linearSpec{
		{LabelBaseline, model.Crossed(VarStage, VarStimulus, VarDistance)},
		{Label10, model.Crossed(VarStage, VarStimulus, VarDistance, VarUrban10)},
		{Label50, model.Crossed(VarStage, VarStimulus, VarDistance, VarUrban50)},
	}
}

func fitLinearFamily(name string, sf *siteFrame, specs []linearSpec) (*Family, error) {
	fam := &Family{Name: name}
	for _, spec := range specs {
		fit, err := model.FitLinear(spec.label, sf.frame, VarResponse, spec.terms)
		if err != nil {
			return nil, err
		}
		fam.Fits = append(fam.Fits, fit)
	}
	if err := fam.rank(sf.frame); err != nil {
		return nil, err
	}
	return fam, nil
}

// FitPerception fits both perception families on the same frame.
func FitPerception(rows []dataset.Joined[dataset.PerceptionRecord]) (historical, corrected *Family, sf *siteFrame, err error) {
	sf = perceptionFrame(rows)
	if historical, err = fitLinearFamily(StagePerception+" (historical)", sf, historicalSpecs()); err != nil {
		return nil, nil, nil, err
	}
	if corrected, err = fitLinearFamily(StagePerception, sf, correctedSpecs()); err != nil {
		return nil, nil, nil, err
	}
	return historical, corrected, sf, nil
}

// RunPerception fits, ranks and summarises the perception families.
func RunPerception(p *Prepared, opts Options) (*PerceptionResult, error) {
	hist, corr, sf, err := FitPerception(p.Perception)
	if err != nil {
		return nil, err
	}
	fit, err := corr.selectFit(opts.PerceptionModel)
	if err != nil {
		return nil, err
	}
	res := &PerceptionResult{
		Historical:        hist,
		Corrected:         corr,
		Selected:          fit,
		UrbanVar:          urbanVar(fit.Label),
		ReferenceDistance: opts.ReferenceDistance,
	}

	res.Correlogram = residualCorrelogram(fit, sf.sites, opts.Correlogram, source(opts.Seed, streamPerceptionPerm))

	draws, err := drawCoefficients(fit, opts.Draws, source(opts.Seed, streamPerceptionDraws))
	if err != nil {
		return nil, err
	}

	response := func(coef []float64, stage dataset.Stage, stimulus, distance, u float64) float64 {
		return linearPredictor(fit, coef, map[string]float64{
			VarStage:     stage.Indicator(),
			VarStimulus:  stimulus,
			VarDistance:  distance,
			res.UrbanVar: u,
		})
	}

	lo, hi := urbanRange(sf, res.UrbanVar)
	urbanGrid := simulate.Grid(lo, hi, opts.GridPoints)
	dist, _ := sf.frame.Col(VarDistance)
	dLo, dHi := minMax(dist)
	distGrid := simulate.Grid(dLo, dHi, opts.GridPoints)
	d0 := opts.ReferenceDistance

	res.DetectabilityByUrban = make(map[dataset.Stage]simulate.Band, 2)
	res.BiasByUrban = make(map[dataset.Stage]simulate.Band, 2)
	res.DetectabilityByDistance = make(map[dataset.Stage]simulate.Band, 2)
	for _, s := range []dataset.Stage{dataset.Adult, dataset.Subadult} {
		res.DetectabilityByUrban[s] = simulate.Curve(fmt.Sprintf("detectability %s", s), draws, urbanGrid,
			func(coef []float64, u float64) float64 {
				return response(coef, s, 1, d0, u) - response(coef, s, 0, d0, u)
			}, opts.IntervalWidth)
		res.BiasByUrban[s] = simulate.Curve(fmt.Sprintf("response bias %s", s), draws, urbanGrid,
			func(coef []float64, u float64) float64 {
				return response(coef, s, 0, d0, u) - 0.5
			}, opts.IntervalWidth)
		res.DetectabilityByDistance[s] = simulate.Curve(fmt.Sprintf("detectability %s", s), draws, distGrid,
			func(coef []float64, d float64) float64 {
				return response(coef, s, 1, d, 0) - response(coef, s, 0, d, 0)
			}, opts.IntervalWidth)
	}

	res.Covariance, err = covarianceCheck(fmt.Sprintf("adult detectability at %g cm", d0), fit, draws,
		func(coef []float64) float64 {
			return response(coef, dataset.Adult, 1, d0, 0) - response(coef, dataset.Adult, 0, d0, 0)
		}, opts, source(opts.Seed, streamPerceptionIndependent))
	if err != nil {
		return nil, err
	}

	for _, s := range []dataset.Stage{dataset.Adult, dataset.Subadult} {
		b := res.DetectabilityByUrban[s]
		monitoring.Stagef(StageUncertainty, "perception %s: %s detectability at %g cm ranges %.3f to %.3f over %s",
			fit.Label, s, d0, b.Median[0], b.Median[len(b.Median)-1], res.UrbanVar)
	}
	return res, nil
}

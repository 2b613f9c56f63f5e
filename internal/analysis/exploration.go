package analysis

import (
	"fmt"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/simulate"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// ExplorationResult holds the exploration family and its derived curves.
type ExplorationResult struct {
	Family      *Family
	Counts      []dataset.ExplorationCount
	Selected    *model.Fit
	UrbanVar    string
	Correlogram *spatial.Correlogram

	// Exploration probability per stage against urbanisation, and the
	// subadult minus adult difference.
	Probability     map[dataset.Stage]simulate.Band
	StageDifference simulate.Band
}

func explorationSpecs() []linearSpec {
	return []linearSpec{
		{LabelBaseline, []model.Term{model.T(VarStage)}},
		{Label10, model.Crossed(VarStage, VarUrban10)},
		{Label50, model.Crossed(VarStage, VarUrban50)},
	}
}

// FitExploration fits the exploration family: binomial GLMs of successes out
// of trials per stage and site.
func FitExploration(counts []dataset.ExplorationCount) (*Family, *siteFrame, error) {
	sf := explorationFrame(counts)
	fam := &Family{Name: StageExploration}
	for _, spec := range explorationSpecs() {
		fit, err := model.FitBinomial(spec.label, sf.frame, VarSuccesses, VarTrials, spec.terms)
		if err != nil {
			return nil, nil, err
		}
		fam.Fits = append(fam.Fits, fit)
	}
	if err := fam.rank(sf.frame); err != nil {
		return nil, nil, err
	}
	return fam, sf, nil
}

// RunExploration fits, ranks and summarises the exploration family.
func RunExploration(p *Prepared, opts Options) (*ExplorationResult, error) {
	fam, sf, err := FitExploration(p.Counts)
	if err != nil {
		return nil, err
	}
	fit, err := fam.selectFit(opts.ExplorationModel)
	if err != nil {
		return nil, err
	}
	res := &ExplorationResult{
		Family:   fam,
		Counts:   p.Counts,
		Selected: fit,
		UrbanVar: urbanVar(fit.Label),
	}

	res.Correlogram = residualCorrelogram(fit, sf.sites, opts.Correlogram, source(opts.Seed, streamExplorationPerm))

	draws, err := drawCoefficients(fit, opts.Draws, source(opts.Seed, streamExplorationDraws))
	if err != nil {
		return nil, err
	}
	lo, hi := urbanRange(sf, res.UrbanVar)
	grid := simulate.Grid(lo, hi, opts.GridPoints)

	prob := func(stage dataset.Stage) simulate.Func {
		return func(coef []float64, u float64) float64 {
			return model.Logistic(linearPredictor(fit, coef, map[string]float64{
				VarStage:     stage.Indicator(),
				res.UrbanVar: u,
			}))
		}
	}
	res.Probability = make(map[dataset.Stage]simulate.Band, 2)
	for _, s := range []dataset.Stage{dataset.Adult, dataset.Subadult} {
		res.Probability[s] = simulate.Curve(fmt.Sprintf("P(explore) %s", s), draws, grid, prob(s), opts.IntervalWidth)
	}
	adult, sub := prob(dataset.Adult), prob(dataset.Subadult)
	res.StageDifference = simulate.Curve("P(explore) subadult - adult", draws, grid,
		func(coef []float64, u float64) float64 { return sub(coef, u) - adult(coef, u) },
		opts.IntervalWidth)

	mid := len(grid) / 2
	monitoring.Stagef(StageUncertainty, "exploration %s: stage difference at %s=%.2f is %.3f [%.3f, %.3f]",
		fit.Label, res.UrbanVar, grid[mid], res.StageDifference.Median[mid], res.StageDifference.Lower[mid], res.StageDifference.Upper[mid])
	return res, nil
}

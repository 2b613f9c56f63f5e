package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
)

// Model frame variable names.
const (
	VarStage     = "stage"
	VarUrban10   = "urban10"
	VarUrban50   = "urban50"
	VarStimulus  = "stimulus"
	VarDistance  = "distance"
	VarSuccesses = "successes"
	VarTrials    = "trials"
	VarResponse  = "response"
	VarSize      = "diameter"
	VarMass      = "foot_mass"
)

// Model labels. Historical perception models add urbanisation as a main
// effect and its interaction with stage only.
const (
	LabelBaseline     = "m0"
	Label10           = "m10"
	Label50           = "m50"
	LabelHistorical10 = "m10h"
	LabelHistorical50 = "m50h"
)

// urbanVar returns the frame variable holding the urbanisation index a model
// label refers to. Baseline models are displayed against the 50 m index.
func urbanVar(label string) string {
	if label == Label10 || label == LabelHistorical10 {
		return VarUrban10
	}
	return VarUrban50
}

// siteFrame is a model frame with the site of each row.
type siteFrame struct {
	frame *model.Frame
	sites []dataset.Site
}

func newSiteFrame(sites []dataset.Site) *siteFrame {
	sf := &siteFrame{frame: model.NewFrame(len(sites)), sites: sites}
	u10 := make([]float64, len(sites))
	u50 := make([]float64, len(sites))
	for i, s := range sites {
		u10[i], u50[i] = s.Urban10, s.Urban50
	}
	sf.frame.MustAdd(VarUrban10, u10).MustAdd(VarUrban50, u50)
	return sf
}

func explorationFrame(counts []dataset.ExplorationCount) *siteFrame {
	sites := make([]dataset.Site, len(counts))
	stage := make([]float64, len(counts))
	succ := make([]float64, len(counts))
	trials := make([]float64, len(counts))
	for i, c := range counts {
		sites[i] = c.Site
		stage[i] = c.Stage.Indicator()
		succ[i] = float64(c.Successes)
		trials[i] = float64(c.Trials)
	}
	sf := newSiteFrame(sites)
	sf.frame.MustAdd(VarStage, stage).MustAdd(VarSuccesses, succ).MustAdd(VarTrials, trials)
	return sf
}

func perceptionFrame(rows []dataset.Joined[dataset.PerceptionRecord]) *siteFrame {
	n := len(rows)
	sites := make([]dataset.Site, n)
	stage := make([]float64, n)
	stim := make([]float64, n)
	dist := make([]float64, n)
	resp := make([]float64, n)
	for i, r := range rows {
		sites[i] = r.Site
		stage[i] = r.Record.Stage.Indicator()
		if r.Record.Stimulus {
			stim[i] = 1
		}
		dist[i] = r.Record.Distance
		resp[i] = r.Record.Response()
	}
	sf := newSiteFrame(sites)
	sf.frame.MustAdd(VarStage, stage).MustAdd(VarStimulus, stim).
		MustAdd(VarDistance, dist).MustAdd(VarResponse, resp)
	return sf
}

// Scaling records the sample means the dissection variables were divided by.
type Scaling struct {
	Diameter float64
	FootMass float64
}

func dissectionFrame(rows []dataset.Joined[dataset.DissectionRecord]) (*siteFrame, Scaling, error) {
	n := len(rows)
	sites := make([]dataset.Site, n)
	size := make([]float64, n)
	mass := make([]float64, n)
	for i, r := range rows {
		sites[i] = r.Site
		size[i] = r.Record.Diameter
		mass[i] = r.Record.FootMass
	}
	sc := Scaling{Diameter: stat.Mean(size, nil), FootMass: stat.Mean(mass, nil)}
	if !(sc.Diameter > 0) || !(sc.FootMass > 0) {
		return nil, sc, fmt.Errorf("%s: scaling means must be positive, got diameter %g and foot mass %g",
			dataset.TableDissection, sc.Diameter, sc.FootMass)
	}
	for i := range size {
		size[i] /= sc.Diameter
		mass[i] /= sc.FootMass
	}
	sf := newSiteFrame(sites)
	sf.frame.MustAdd(VarSize, size).MustAdd(VarMass, mass)
	return sf, sc, nil
}

// linearPredictor evaluates the linear predictor of a GLM or linear model
// fit for coefficient vector coef at the given variable values.
func linearPredictor(fit *model.Fit, coef []float64, values map[string]float64) float64 {
	eta := coef[0]
	for j, t := range fit.Terms {
		prod := coef[j+1]
		for _, v := range t.Vars {
			prod *= values[v]
		}
		eta += prod
	}
	return eta
}

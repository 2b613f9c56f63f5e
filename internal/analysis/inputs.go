package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/config"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/urban"
)

// Inputs are the raw, validated tables of one run.
type Inputs struct {
	Sites       []dataset.Site
	Exploration []dataset.ExplorationRecord
	Perception  []dataset.PerceptionRecord
	Dissection  []dataset.DissectionRecord
}

// LoadInputs reads the four input files named by cfg. Any schema problem is
// fatal.
func LoadInputs(cfg *config.AnalysisConfig) (*Inputs, error) {
	var in Inputs
	var err error
	if in.Sites, err = dataset.LoadSites(cfg.GetSitesPath()); err != nil {
		return nil, err
	}
	if in.Exploration, err = dataset.LoadExploration(cfg.GetExplorationPath()); err != nil {
		return nil, err
	}
	if in.Perception, err = dataset.LoadPerception(cfg.GetPerceptionPath()); err != nil {
		return nil, err
	}
	if in.Dissection, err = dataset.LoadDissection(cfg.GetDissectionPath()); err != nil {
		return nil, err
	}
	monitoring.Stagef(StageLoad, "%d sites, %d exploration trials, %d perception trials, %d dissected snails",
		len(in.Sites), len(in.Exploration), len(in.Perception), len(in.Dissection))
	return &in, nil
}

// Prepared holds the inputs after indexing and joining: every survey row
// carries its site, and every site carries both urbanisation scores.
type Prepared struct {
	Sites   []dataset.Site
	Index10 *urban.Index
	Index50 *urban.Index

	Exploration []dataset.Joined[dataset.ExplorationRecord]
	Counts      []dataset.ExplorationCount
	Perception  []dataset.Joined[dataset.PerceptionRecord]
	Dissection  []dataset.Joined[dataset.DissectionRecord]

	Joins []dataset.JoinReport
}

// BuildIndices runs both PCAs and returns the sites carrying their scores.
func BuildIndices(sites []dataset.Site) ([]dataset.Site, *urban.Index, *urban.Index, error) {
	idx10, err := urban.Build(sites, dataset.Buffer10)
	if err != nil {
		return nil, nil, nil, err
	}
	idx50, err := urban.Build(sites, dataset.Buffer50)
	if err != nil {
		return nil, nil, nil, err
	}
	scored, err := urban.Attach(sites, idx10, idx50)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, ix := range []*urban.Index{idx10, idx50} {
		monitoring.Stagef(StageIndex, "%s index: PC1 explains %.1f%% of variance, loadings %v",
			ix.Buffer, 100*ix.Explained[0], roundAll(ix.Loadings, 3))
	}
	return scored, idx10, idx50, nil
}

// JoinAll attaches sites to every survey table. Unmatched site names are
// logged and reported; with strict set they are fatal.
func JoinAll(p *Prepared, in *Inputs, strict bool) error {
	var err error
	var rep dataset.JoinReport
	var errs []error

	p.Exploration, rep, err = dataset.Join(dataset.TableExploration, in.Exploration, p.Sites, strict)
	p.Joins = append(p.Joins, rep)
	errs = append(errs, err)

	p.Perception, rep, err = dataset.Join(dataset.TablePerception, in.Perception, p.Sites, strict)
	p.Joins = append(p.Joins, rep)
	errs = append(errs, err)

	p.Dissection, rep, err = dataset.Join(dataset.TableDissection, in.Dissection, p.Sites, strict)
	p.Joins = append(p.Joins, rep)
	errs = append(errs, err)

	for _, r := range p.Joins {
		if r.OK() {
			monitoring.Stagef(StageJoin, "%s", r)
		} else {
			monitoring.Warnf(StageJoin, "%s", r)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	switch {
	case len(p.Exploration) == 0:
		return fmt.Errorf("%s: no rows matched a site", dataset.TableExploration)
	case len(p.Perception) == 0:
		return fmt.Errorf("%s: no rows matched a site", dataset.TablePerception)
	case len(p.Dissection) == 0:
		return fmt.Errorf("%s: no rows matched a site", dataset.TableDissection)
	}
	p.Counts = dataset.AggregateExploration(p.Exploration)
	return nil
}

// Prepare indexes the sites and joins the survey tables to them.
func Prepare(in *Inputs, strict bool) (*Prepared, error) {
	sites, idx10, idx50, err := BuildIndices(in.Sites)
	if err != nil {
		return nil, stageErr(StageIndex, err)
	}
	p := &Prepared{Sites: sites, Index10: idx10, Index50: idx50}
	if err := JoinAll(p, in, strict); err != nil {
		return p, stageErr(StageJoin, err)
	}
	return p, nil
}

func roundAll(v []float64, digits int) []float64 {
	scale := math.Pow(10, float64(digits))
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Round(x*scale) / scale
	}
	return out
}

// Package analysis runs the re-analysis pipeline: it loads and joins the
// survey tables, fits the three model families, ranks them, checks their
// residuals for spatial structure and propagates coefficient uncertainty into
// the derived curves the reports plot.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/config"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/spatial"
)

// Options are the resolved settings of one run.
type Options struct {
	Seed          uint64
	Draws         int
	IntervalWidth float64
	GridPoints    int

	Correlogram spatial.Settings

	NLSStart model.PowerLawStart
	NLS      model.PowerLawSettings

	ReferenceDistance float64
	ReferenceSize     float64

	ExplorationModel string
	PerceptionModel  string
	DissectionModel  string

	StrictJoin bool
	Parallel   bool
}

// OptionsFrom resolves cfg, filling defaults for unset fields.
func OptionsFrom(cfg *config.AnalysisConfig) Options {
	start := cfg.GetNLSStart()
	return Options{
		Seed:          cfg.GetSeed(),
		Draws:         cfg.GetDraws(),
		IntervalWidth: cfg.GetIntervalWidth(),
		GridPoints:    cfg.GetGridPoints(),
		Correlogram: spatial.Settings{
			Increment:    cfg.GetCorrelogramIncrement(),
			MaxDistance:  cfg.GetCorrelogramMaxDistance(),
			Permutations: cfg.GetPermutations(),
		},
		NLSStart: model.PowerLawStart{
			A0: start.A0, A1: start.A1, B0: start.B0, B1: start.B1, Delta: start.Delta,
		},
		NLS:               model.PowerLawSettings{MaxIterations: cfg.GetNLSMaxIterations()},
		ReferenceDistance: cfg.GetReferenceDistance(),
		ReferenceSize:     cfg.GetReferenceSize(),
		ExplorationModel:  cfg.GetExplorationModel(),
		PerceptionModel:   cfg.GetPerceptionModel(),
		DissectionModel:   cfg.GetDissectionModel(),
		StrictJoin:        cfg.GetStrictJoin(),
		Parallel:          cfg.GetParallelFits(),
	}
}

// Result is everything one run produced.
type Result struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	Options   Options

	Prepared    *Prepared
	Exploration *ExplorationResult
	Perception  *PerceptionResult
	Dissection  *DissectionResult
}

// Run loads the inputs named by cfg and runs every stage.
func Run(ctx context.Context, cfg *config.AnalysisConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	in, err := LoadInputs(cfg)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	return RunInputs(ctx, in, OptionsFrom(cfg))
}

// RunInputs runs every stage on already loaded inputs. Stages run in order;
// the three domain fits run concurrently when opts.Parallel is set. A
// cancelled context stops the run between stages.
func RunInputs(ctx context.Context, in *Inputs, opts Options) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Options:   opts,
	}
	monitoring.Logf("run %s: seed %d, %d draws", res.RunID, opts.Seed, opts.Draws)

	prep, err := Prepare(in, opts.StrictJoin)
	if err != nil {
		return nil, err
	}
	res.Prepared = prep
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domains := []struct {
		stage string
		run   func() error
	}{
		{StageExploration, func() (err error) {
			res.Exploration, err = RunExploration(prep, opts)
			return err
		}},
		{StagePerception, func() (err error) {
			res.Perception, err = RunPerception(prep, opts)
			return err
		}},
		{StageDissection, func() (err error) {
			res.Dissection, err = RunDissection(prep, opts)
			return err
		}},
	}

	if opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, d := range domains {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return stageErr(d.stage, d.run())
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, d := range domains {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := d.run(); err != nil {
				return nil, stageErr(d.stage, err)
			}
		}
	}

	res.Elapsed = time.Since(res.StartedAt)
	monitoring.Logf("run %s finished in %s", res.RunID, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

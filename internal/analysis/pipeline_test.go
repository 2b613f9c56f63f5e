package analysis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/config"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/model"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/testutil"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/urban"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func testConfig(files testutil.SurveyFiles) *config.AnalysisConfig {
	cfg := config.DefaultAnalysisConfig()
	cfg.SitesPath = &files.Sites
	cfg.ExplorationPath = &files.Exploration
	cfg.PerceptionPath = &files.Perception
	cfg.DissectionPath = &files.Dissection
	draws, perms, grid := 200, 99, 11
	cfg.Draws = &draws
	cfg.Permutations = &perms
	cfg.GridPoints = &grid
	return cfg
}

func TestRun_SelectsFiftyMetreModels(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	res, err := Run(context.Background(), testConfig(files))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	for _, j := range res.Prepared.Joins {
		assert.True(t, j.OK(), j.String())
	}
	assert.Len(t, res.Prepared.Counts, 40)

	expl := res.Exploration
	assert.Equal(t, Label50, expl.Family.Table.Lowest())
	row, ok := expl.Family.Table.Row(Label50)
	require.True(t, ok)
	assert.Greater(t, row.Weight, 0.9)
	assert.Equal(t, Label50, expl.Selected.Label)
	assert.Equal(t, VarUrban50, expl.UrbanVar)

	// Less urbanised sites explore more, so the probability rises with the score.
	for _, s := range []dataset.Stage{dataset.Adult, dataset.Subadult} {
		b := expl.Probability[s]
		require.Len(t, b.Median, 11)
		assert.Greater(t, b.Median[10], b.Median[0], s.String())
		for i := range b.Median {
			assert.LessOrEqual(t, b.Lower[i], b.Median[i])
			assert.LessOrEqual(t, b.Median[i], b.Upper[i])
			assert.True(t, b.Lower[i] >= 0 && b.Upper[i] <= 1)
		}
	}
	require.NotNil(t, expl.Correlogram)
	assert.Equal(t, 20, expl.Correlogram.N)

	perc := res.Perception
	assert.Equal(t, Label50, perc.Corrected.Table.Lowest())
	assert.Equal(t, LabelHistorical50, perc.Historical.Table.Lowest())
	det := perc.DetectabilityByUrban[dataset.Adult]
	assert.Greater(t, det.Median[10], det.Median[0])
	byDist := perc.DetectabilityByDistance[dataset.Adult]
	assert.Greater(t, byDist.Median[0], byDist.Median[10], "detectability fades with distance")

	diss := res.Dissection
	require.Len(t, diss.Family.Fits, 3)
	assert.InDelta(t, 1, mean(diss.Size), 1e-9)
	assert.InDelta(t, 1, mean(diss.Mass), 1e-9)
	assert.InDelta(t, 2.6, diss.Exponent.Median[5], 0.3)
	assert.Greater(t, diss.Exponent.Median[10], diss.Exponent.Median[0])

	for _, c := range []CovarianceCheck{perc.Covariance, diss.Covariance} {
		assert.NotEmpty(t, c.Quantity)
		assert.Positive(t, c.Joint.Width(), c.Quantity)
		assert.Positive(t, c.Independent.Width(), c.Quantity)
		assert.InDelta(t, c.Joint.Median, c.Independent.Median, c.Joint.Width(), c.Quantity)
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	cfg := testConfig(files)

	parallel := true
	cfg.ParallelFits = &parallel
	a, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	sequential := false
	cfg.ParallelFits = &sequential
	b, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(a.Exploration.StageDifference, b.Exploration.StageDifference); diff != "" {
		t.Errorf("exploration bands differ (-parallel +sequential):\n%s", diff)
	}
	if diff := cmp.Diff(a.Perception.BiasByUrban, b.Perception.BiasByUrban); diff != "" {
		t.Errorf("perception bands differ (-parallel +sequential):\n%s", diff)
	}
	if diff := cmp.Diff(a.Dissection.MassAtRef, b.Dissection.MassAtRef); diff != "" {
		t.Errorf("dissection bands differ (-parallel +sequential):\n%s", diff)
	}
	if diff := cmp.Diff(a.Exploration.Correlogram, b.Exploration.Correlogram); diff != "" {
		t.Errorf("correlograms differ (-parallel +sequential):\n%s", diff)
	}
}

func appendRow(t *testing.T, path, row string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(row + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestRun_UnmatchedSites(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	appendRow(t, files.Exploration, "ZZ,01/05/2016,a,1")
	appendRow(t, files.Exploration, "ZZ,02/05/2016,s,0")

	t.Run("reported", func(t *testing.T) {
		res, err := Run(context.Background(), testConfig(files))
		require.NoError(t, err)
		rep := res.Prepared.Joins[0]
		assert.Equal(t, dataset.TableExploration, rep.Table)
		assert.Equal(t, []string{"ZZ"}, rep.Unmatched)
		assert.Equal(t, 2, rep.DroppedRows)
		assert.Equal(t, rep.Rows-2, rep.Matched)
	})

	t.Run("strict", func(t *testing.T) {
		cfg := testConfig(files)
		strict := true
		cfg.StrictJoin = &strict
		_, err := Run(context.Background(), cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, dataset.ErrJoinMismatch)
		var se *StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageJoin, se.Stage)
	})
}

func TestRun_SchemaErrorIsLoadStage(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	appendRow(t, files.Perception, "S01,01/05/2016,a,2,1,190")

	_, err := Run(context.Background(), testConfig(files))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLoad, se.Stage)
	var schema *dataset.SchemaError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, dataset.TablePerception, schema.Table)
}

func TestRunInputs_DegeneratePCA(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	in, err := LoadInputs(testConfig(files))
	require.NoError(t, err)
	for i := range in.Sites {
		in.Sites[i].Metrics50 = in.Sites[0].Metrics50
	}

	_, err = RunInputs(context.Background(), in, OptionsFrom(testConfig(files)))
	assert.ErrorIs(t, err, urban.ErrDegeneratePCA)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageIndex, se.Stage)
}

func TestRunInputs_Cancelled(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	cfg := testConfig(files)
	in, err := LoadInputs(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunInputs(ctx, in, OptionsFrom(cfg))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := config.DefaultAnalysisConfig()
	draws := 5
	cfg.Draws = &draws
	_, err := Run(context.Background(), cfg)
	assert.ErrorContains(t, err, "draws")
}

func TestRun_UnknownModelLabel(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	in, err := LoadInputs(testConfig(files))
	require.NoError(t, err)
	opts := OptionsFrom(testConfig(files))
	opts.DissectionModel = "m25"
	opts.Parallel = false

	_, err = RunInputs(context.Background(), in, opts)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDissection, se.Stage)
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// The generated survey has no 10 m effect on allometry, so the m10 likelihood
// is nearly flat in the covariate slopes.
func TestFitDissection_TenMetreCovariateConverges(t *testing.T) {
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	cfg := testConfig(files)
	in, err := LoadInputs(cfg)
	require.NoError(t, err)
	p, err := Prepare(in, false)
	require.NoError(t, err)
	sf, _, err := dissectionFrame(p.Dissection)
	require.NoError(t, err)
	opts := OptionsFrom(cfg)

	fit, err := model.FitPowerLaw(Label10, sf.frame, model.PowerLawSpec{
		Response:  VarMass,
		Size:      VarSize,
		Covariate: VarUrban10,
	}, opts.NLSStart, opts.NLS)
	require.NoError(t, err)

	assert.Equal(t, 6, fit.K)
	assert.InDelta(t, 0, fit.Coef[1], 0.05, "prefactor slope")
	assert.InDelta(t, 0, fit.Coef[3], 0.3, "exponent slope")
	for i, se := range fit.SE() {
		assert.Greater(t, se, 0.0, "coefficient %d", i)
	}
	assert.Greater(t, fit.VarPowerSE, 0.0)
}

package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/config"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/fsutil"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func runFixture(t *testing.T) *analysis.Result {
	t.Helper()
	files := testutil.WriteSurvey(t, testutil.DefaultSurvey())
	cfg := config.DefaultAnalysisConfig()
	cfg.SitesPath = &files.Sites
	cfg.ExplorationPath = &files.Exploration
	cfg.PerceptionPath = &files.Perception
	cfg.DissectionPath = &files.Dissection
	draws, perms, grid := 100, 49, 9
	cfg.Draws = &draws
	cfg.Permutations = &perms
	cfg.GridPoints = &grid

	res, err := analysis.Run(context.Background(), cfg)
	require.NoError(t, err)
	return res
}

func TestWrite_MemoryFileSystem(t *testing.T) {
	res := runFixture(t)
	mfs := fsutil.NewMemoryFileSystem()

	written, err := Write(mfs, "/out", res)
	require.NoError(t, err)
	assert.Equal(t, mfs.Files("/out"), sortedCopy(written))

	for _, name := range []string{
		"exploration_probability.png",
		"exploration_stage_difference.png",
		"perception_detectability.png",
		"perception_bias.png",
		"perception_distance.png",
		"dissection_allometry.png",
		"dissection_prefactor.png",
		"dissection_exponent.png",
		"dissection_mass.png",
		"correlogram_exploration.png",
		"correlogram_perception.png",
		"correlogram_dissection.png",
	} {
		data, err := mfs.ReadFile(filepath.Join("/out", PlotDir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "%s is not a PNG", name)
	}

	summary, err := mfs.ReadFile("/out/" + SummaryFile)
	require.NoError(t, err)
	assert.Contains(t, string(summary), res.RunID)

	dash, err := mfs.ReadFile("/out/" + DashboardFile)
	require.NoError(t, err)
	assert.Contains(t, string(dash), "echarts")
	assert.Contains(t, string(dash), "delta AICc")
}

func TestWriteText_Sections(t *testing.T) {
	res := runFixture(t)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res))
	out := buf.String()

	for _, want := range []string{
		"Urbanisation indices",
		"10m buffer",
		"50m buffer",
		"Site joins",
		"Exploration",
		"Perception (historical models)",
		"Dissection",
		"m50 coefficients",
		"LR Chisq",
		"F",
		"Wald Chisq",
		"residual correlogram of m50",
		"P(explore) subadult - adult",
		"variance power",
		"adult detectability at 10 cm, joint and independent coefficient draws",
		"scaled foot mass at size 1, joint and independent coefficient draws",
		"width ratio (independent / joint)",
	} {
		assert.Contains(t, out, want)
	}
	// Ranked tables list the lowest AICc first.
	expl := out[strings.Index(out, "Exploration\n"):]
	assert.Less(t, strings.Index(expl, "m50 "), strings.Index(expl, "m0 "))
}

func TestWrite_OSFileSystem(t *testing.T) {
	res := runFixture(t)
	dir := t.TempDir()
	written, err := Write(fsutil.OSFileSystem{}, dir, res)
	require.NoError(t, err)
	for _, name := range written {
		info, err := os.Stat(name)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestFormatP(t *testing.T) {
	assert.Equal(t, "<1e-4", formatP(1e-7))
	assert.Equal(t, "0.0123", formatP(0.0123))
}

func sortedCopy(v []string) []string {
	out := append([]string(nil), v...)
	sort.Strings(out)
	return out
}

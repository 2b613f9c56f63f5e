package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/dataset"
)

func TestWriteSurvey_Loadable(t *testing.T) {
	opts := DefaultSurvey()
	files := WriteSurvey(t, opts)

	sites, err := dataset.LoadSites(files.Sites)
	require.NoError(t, err)
	require.Len(t, sites, 20)
	assert.Equal(t, "S01", sites[0].Name)

	expl, err := dataset.LoadExploration(files.Exploration)
	require.NoError(t, err)
	assert.Len(t, expl, 20*2*opts.Trials)

	perc, err := dataset.LoadPerception(files.Perception)
	require.NoError(t, err)
	assert.Len(t, perc, 20*2*2*len(opts.Distances)*2)

	diss, err := dataset.LoadDissection(files.Dissection)
	require.NoError(t, err)
	assert.Len(t, diss, 20*opts.Dissected)
	for _, d := range diss {
		assert.Greater(t, d.FootMass, 0.0)
	}
}

func TestWriteSurvey_Deterministic(t *testing.T) {
	a := WriteSurvey(t, DefaultSurvey())
	b := WriteSurvey(t, DefaultSurvey())

	ea, err := dataset.LoadExploration(a.Exploration)
	require.NoError(t, err)
	eb, err := dataset.LoadExploration(b.Exploration)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)

	sa, err := dataset.LoadSites(a.Sites)
	require.NoError(t, err)
	sb, err := dataset.LoadSites(b.Sites)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestGradientsOrthogonal(t *testing.T) {
	g := newGradients(12)
	var dot, sum10, sum50 float64
	for i := range g.l10 {
		dot += g.l10[i] * g.l50[i]
		sum10 += g.l10[i]
		sum50 += g.l50[i]
	}
	assert.InDelta(t, 0, dot, 1e-12)
	assert.InDelta(t, 0, sum10, 1e-12)
	assert.InDelta(t, 0, sum50, 1e-12)
}

func TestSiteCountRoundedUp(t *testing.T) {
	opts := DefaultSurvey()
	opts.Sites = 5
	files := WriteSurvey(t, opts)
	sites, err := dataset.LoadSites(files.Sites)
	require.NoError(t, err)
	assert.Len(t, sites, 8)
	assert.Equal(t, SiteNames(8)[7], sites[7].Name)
}

package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAICc(t *testing.T) {
	// -2*(-10) + 2*3 + 2*3*4/(20-3-1) = 20 + 6 + 1.5
	assert.InDelta(t, 27.5, AICc(-10, 3, 20), 1e-12)
	assert.True(t, math.IsInf(AICc(-10, 3, 4), 1))
}

func TestRank(t *testing.T) {
	fits := []*Fit{
		{Label: "m0", LogLik: -50, K: 2, N: 30},
		{Label: "m10", LogLik: -49.5, K: 4, N: 30},
		{Label: "m50", LogLik: -40, K: 4, N: 30},
	}
	table, err := Rank("exploration", fits)
	require.NoError(t, err)

	assert.Equal(t, "m50", table.Lowest())
	assert.Equal(t, 0.0, table.Rows[0].Delta)
	total := 0.0
	for i, row := range table.Rows {
		total += row.Weight
		if i > 0 {
			assert.GreaterOrEqual(t, row.AICc, table.Rows[i-1].AICc)
		}
	}
	assert.InDelta(t, 1, total, 1e-12)

	m0, ok := table.Row("m0")
	require.True(t, ok)
	assert.InDelta(t, AICc(-50, 2, 30), m0.AICc, 1e-12)

	_, err = Rank("mixed", []*Fit{{Label: "a", N: 10}, {Label: "b", N: 11}})
	assert.Error(t, err)
}

// A null covariate should not, on average, lower AICc.
func TestAICc_NullCovariateNotFavoured(t *testing.T) {
	r := rand.New(rand.NewPCG(2016, 1))
	const reps = 200
	const n = 60

	lower := 0
	meanDiff := 0.0
	for rep := 0; rep < reps; rep++ {
		x := make([]float64, n)
		z := make([]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			x[i] = r.NormFloat64()
			z[i] = r.NormFloat64()
			y[i] = 0.5 + 1.2*x[i] + r.NormFloat64()
		}
		f := NewFrame(n).MustAdd("x", x).MustAdd("z", z).MustAdd("y", y)

		base, err := FitLinear("base", f, "y", []Term{T("x")})
		require.NoError(t, err)
		extra, err := FitLinear("extra", f, "y", []Term{T("x"), T("z")})
		require.NoError(t, err)

		d := extra.AICc() - base.AICc()
		meanDiff += d / reps
		if d < 0 {
			lower++
		}
	}
	assert.Greater(t, meanDiff, 0.0)
	assert.Less(t, lower, reps/2)
}

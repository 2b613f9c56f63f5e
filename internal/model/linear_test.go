package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitLinear_SimpleRegression(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2.1, 3.9, 6.2, 7.8, 10.1, 12.0}
	f := NewFrame(len(x)).MustAdd("x", x).MustAdd("y", y)

	fit, err := FitLinear("lm", f, "y", []Term{T("x")})
	require.NoError(t, err)

	// Closed form slope and intercept.
	var sx, sy, sxx, sxy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
		sxx += x[i] * x[i]
		sxy += x[i] * y[i]
	}
	n := float64(len(x))
	slope := (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept := (sy - slope*sx) / n
	assert.InDelta(t, intercept, fit.Coef[0], 1e-10)
	assert.InDelta(t, slope, fit.Coef[1], 1e-10)

	rss := 0.0
	for i := range x {
		r := y[i] - intercept - slope*x[i]
		rss += r * r
	}
	assert.InDelta(t, rss, fit.Deviance, 1e-10)
	s2 := rss / (n - 2)
	mx := sx / n
	sxxc := sxx - n*mx*mx
	assert.InDelta(t, math.Sqrt(s2/sxxc), fit.SE()[1], 1e-10)
	assert.InDelta(t, -n/2*(math.Log(2*math.Pi*rss/n)+1), fit.LogLik, 1e-10)
	assert.Equal(t, 3, fit.K)
	assert.Less(t, fit.Correlation(0, 1), 0.0, "intercept and slope anti-correlated for positive x")
}

func TestFitLinear_RankDeficient(t *testing.T) {
	f := NewFrame(4).
		MustAdd("a", []float64{1, 2, 3, 4}).
		MustAdd("b", []float64{2, 4, 6, 8}).
		MustAdd("y", []float64{1, 0, 1, 0})
	_, err := FitLinear("lm", f, "y", []Term{T("a"), T("b")})
	assert.Error(t, err)
}

func TestTypeII_LinearSingleTermIsSquaredT(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = r.Float64() * 10
		y[i] = 1 + 0.3*x[i] + r.NormFloat64()
	}
	f := NewFrame(n).MustAdd("x", x).MustAdd("y", y)
	fit, err := FitLinear("lm", f, "y", []Term{T("x")})
	require.NoError(t, err)

	tests, err := TypeII(f, fit)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	tval := fit.Coef[1] / fit.SE()[1]
	assert.InDelta(t, tval*tval, tests[0].Statistic, 1e-8)
	assert.Equal(t, FStat, tests[0].Test)
	assert.Less(t, tests[0].PValue, 0.001)
}

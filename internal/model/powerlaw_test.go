package model

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulatePowerLaw draws y = (a0+a1 u) x^(b0+b1 u) with sd sigma*mu^delta.
func simulatePowerLaw(seed uint64, n int, a0, a1, b0, b1, delta, sigma float64) *Frame {
	r := rand.New(rand.NewPCG(seed, 99))
	x := make([]float64, n)
	u := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 0.6 + 0.8*r.Float64()
		u[i] = -2 + 4*r.Float64()
		mu := (a0 + a1*u[i]) * math.Pow(x[i], b0+b1*u[i])
		y[i] = mu + sigma*math.Pow(mu, delta)*r.NormFloat64()
	}
	return NewFrame(n).MustAdd("x", x).MustAdd("u", u).MustAdd("y", y)
}

var defaultStart = PowerLawStart{A0: 1, A1: 0, B0: 3, B1: 0, Delta: 0.5}

func TestFitPowerLaw_RecoversParameters(t *testing.T) {
	f := simulatePowerLaw(7, 400, 1.0, 0.1, 3.0, -0.2, 1.0, 0.05)

	fit, err := FitPowerLaw("m", f, PowerLawSpec{Response: "y", Size: "x", Covariate: "u"}, defaultStart, PowerLawSettings{MaxIterations: 500})
	require.NoError(t, err)

	assert.Equal(t, []string{PrefactorIntercept, PrefactorSlope, ExponentIntercept, ExponentSlope}, fit.Names)
	assert.InDelta(t, 1.0, fit.Coef[0], 0.05)
	assert.InDelta(t, 0.1, fit.Coef[1], 0.05)
	assert.InDelta(t, 3.0, fit.Coef[2], 0.1)
	assert.InDelta(t, -0.2, fit.Coef[3], 0.1)
	assert.InDelta(t, 1.0, fit.VarPower, 0.25)
	assert.InDelta(t, 0.05*0.05, fit.Scale, 0.001)
	assert.Equal(t, 6, fit.K)

	for i, se := range fit.SE() {
		assert.Greater(t, se, 0.0, "coefficient %d", i)
		assert.Less(t, se, 0.5, "coefficient %d", i)
	}
	// Evaluating the fitted mean through the exported helper matches Fitted.
	x, _ := f.Col("x")
	u, _ := f.Col("u")
	assert.InDelta(t, fit.Fitted[0], PowerLawMean(fit.Coef, x[0], u[0]), 1e-12)
}

func TestFitPowerLaw_Baseline(t *testing.T) {
	f := simulatePowerLaw(8, 300, 1.2, 0, 2.8, 0, 0.8, 0.04)

	fit, err := FitPowerLaw("m0", f, PowerLawSpec{Response: "y", Size: "x"}, defaultStart, PowerLawSettings{})
	require.NoError(t, err)
	assert.Equal(t, []string{PrefactorIntercept, ExponentIntercept}, fit.Names)
	assert.InDelta(t, 1.2, fit.Coef[0], 0.05)
	assert.InDelta(t, 2.8, fit.Coef[1], 0.1)
	assert.Equal(t, 4, fit.K)

	a, b := PowerLawParams(fit.Coef, 5)
	assert.Equal(t, fit.Coef[0], a, "baseline ignores the covariate")
	assert.Equal(t, fit.Coef[1], b)

	tests := WaldTests(fit)
	require.Len(t, tests, 2)
	assert.Less(t, tests[0].PValue, 1e-6)
}

func TestFitPowerLaw_NonConvergence(t *testing.T) {
	f := simulatePowerLaw(9, 200, 1.0, 0.1, 3.0, -0.2, 1.0, 0.05)
	spec := PowerLawSpec{Response: "y", Size: "x", Covariate: "u"}

	t.Run("invalid start", func(t *testing.T) {
		bad := defaultStart
		bad.A0 = -1
		_, err := FitPowerLaw("m", f, spec, bad, PowerLawSettings{})
		assert.True(t, errors.Is(err, ErrNonConvergence), "got %v", err)
	})

	t.Run("iteration cap", func(t *testing.T) {
		far := PowerLawStart{A0: 3, A1: 0, B0: 0.5, B1: 0, Delta: 0}
		_, err := FitPowerLaw("m", f, spec, far, PowerLawSettings{MaxIterations: 1})
		assert.True(t, errors.Is(err, ErrNonConvergence), "got %v", err)
	})
}

func TestPowerLawGradient_MatchesFiniteDifference(t *testing.T) {
	f := simulatePowerLaw(11, 150, 1.0, 0.1, 3.0, -0.2, 1.0, 0.05)
	y, _ := f.Col("y")
	x, _ := f.Col("x")
	u, _ := f.Col("u")

	tests := []struct {
		name string
		m    *powerLawModel
		p    []float64
	}{
		{"covariate", newPowerLawModel(y, x, u), []float64{0.9, 0.05, 2.7, -0.1, 0.8}},
		{"baseline", newPowerLawModel(y, x, nil), []float64{1.1, 2.9, 1.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]float64, len(tt.p))
			tt.m.gradient(got, tt.p)
			want := fd.Gradient(nil, tt.m.negLogLik, tt.p, &fd.Settings{Formula: fd.Central})
			for i := range want {
				assert.InDelta(t, want[i], got[i], 1e-4*math.Max(1, math.Abs(want[i])), "component %d", i)
			}
		})
	}
}

func TestPowerLawGradient_OutsideDomain(t *testing.T) {
	f := simulatePowerLaw(12, 50, 1.0, 0, 3.0, 0, 1.0, 0.05)
	y, _ := f.Col("y")
	x, _ := f.Col("x")
	m := newPowerLawModel(y, x, nil)

	grad := make([]float64, 3)
	m.gradient(grad, []float64{-1, 3, 1})
	assert.True(t, floats.HasNaN(grad))
	assert.False(t, m.stationary([]float64{-1, 3, 1}, m.negLogLik([]float64{-1, 3, 1})))
}

// A covariate with no effect leaves the likelihood nearly flat in a1 and b1;
// the fit must still stop at the optimum it reaches.
func TestFitPowerLaw_NullCovariate(t *testing.T) {
	for _, seed := range []uint64{3, 21, 2016} {
		f := simulatePowerLaw(seed, 160, 1.0, 0, 2.5, 0, 1.0, 0.12)

		fit, err := FitPowerLaw("m10", f, PowerLawSpec{Response: "y", Size: "x", Covariate: "u"}, defaultStart, PowerLawSettings{MaxIterations: 500})
		require.NoError(t, err, "seed %d", seed)

		assert.InDelta(t, 0, fit.Coef[1], 0.1, "seed %d", seed)
		assert.InDelta(t, 0, fit.Coef[3], 0.2, "seed %d", seed)

		y, _ := f.Col("y")
		x, _ := f.Col("x")
		u, _ := f.Col("u")
		m := newPowerLawModel(y, x, u)
		p := append(append([]float64(nil), fit.Coef...), fit.VarPower)
		assert.True(t, m.stationary(p, -fit.LogLik), "seed %d", seed)
	}
}

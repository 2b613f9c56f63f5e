package simulate

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestDrawJoint_MomentsMatch(t *testing.T) {
	coef := []float64{1, -2}
	cov := mat.NewSymDense(2, []float64{0.25, 0.1, 0.1, 0.09})
	draws, err := DrawJoint(coef, cov, 20000, rand.NewPCG(1, 2))
	require.NoError(t, err)

	c0 := mat.Col(nil, 0, draws)
	c1 := mat.Col(nil, 1, draws)
	assert.InDelta(t, 1, stat.Mean(c0, nil), 0.02)
	assert.InDelta(t, -2, stat.Mean(c1, nil), 0.02)
	assert.InDelta(t, 0.25, stat.Variance(c0, nil), 0.02)
	assert.InDelta(t, 0.1, stat.Covariance(c0, c1, nil), 0.01)
}

func TestDrawJoint_Errors(t *testing.T) {
	notPD := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	_, err := DrawJoint([]float64{0, 0}, notPD, 10, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = DrawJoint([]float64{0}, mat.NewSymDense(2, nil), 10, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = DrawJoint([]float64{0}, mat.NewSymDense(1, []float64{1}), 0, rand.NewPCG(1, 1))
	assert.Error(t, err)
}

func TestJointDifferenceNarrowerUnderPositiveCorrelation(t *testing.T) {
	coef := []float64{2, 1.5}
	sd := []float64{0.5, 0.5}
	rho := 0.9
	cov := mat.NewSymDense(2, []float64{
		sd[0] * sd[0], rho * sd[0] * sd[1],
		rho * sd[0] * sd[1], sd[1] * sd[1],
	})
	diff := func(c []float64) float64 { return c[0] - c[1] }

	joint, err := DrawJoint(coef, cov, 8000, rand.NewPCG(7, 7))
	require.NoError(t, err)
	indep, err := DrawIndependent(coef, sd, 8000, rand.NewPCG(7, 7))
	require.NoError(t, err)

	j := Scalar(joint, diff, 0.95)
	i := Scalar(indep, diff, 0.95)
	assert.InDelta(t, 0.5, j.Median, 0.02)
	assert.InDelta(t, 0.5, i.Median, 0.05)
	// sd of the difference is sqrt(0.05)=0.224 jointly and sqrt(0.5)=0.707 independently.
	assert.InDelta(t, 2*1.96*math.Sqrt(0.05), j.Width(), 0.06)
	assert.InDelta(t, 2*1.96*math.Sqrt(0.5), i.Width(), 0.12)
	assert.Less(t, j.Width(), i.Width()/2)
}

func TestInterval(t *testing.T) {
	values := make([]float64, 101)
	for i := range values {
		values[100-i] = float64(i)
	}
	s := Interval(values, 0.9)
	assert.InDelta(t, 50, s.Median, 1e-9)
	assert.InDelta(t, 5, s.Lower, 1)
	assert.InDelta(t, 95, s.Upper, 1)
	assert.Equal(t, float64(0), values[100], "input must not be reordered")
}

func TestCurve(t *testing.T) {
	draws := mat.NewDense(3, 2, []float64{
		0, 1,
		1, 1,
		2, 1,
	})
	line := func(c []float64, x float64) float64 { return c[0] + c[1]*x }
	grid := Grid(0, 4, 5)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, grid)

	b := Curve("line", draws, grid, line, 1)
	require.Len(t, b.Median, 5)
	for g, x := range grid {
		assert.InDelta(t, 1+x, b.Median[g], 1e-12)
		assert.InDelta(t, x, b.Lower[g], 1e-12)
		assert.InDelta(t, 2+x, b.Upper[g], 1e-12)
		assert.InDelta(t, 2, b.At(g).Width(), 1e-12)
	}
}

func TestGrid_SinglePoint(t *testing.T) {
	assert.Equal(t, []float64{3}, Grid(3, 9, 1))
}

package spatial

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid returns an n×n lattice with unit spacing.
func grid(n int) (x, y []float64) {
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x = append(x, float64(i))
			y = append(y, float64(j))
		}
	}
	return x, y
}

func TestCompute_DetectsGradient(t *testing.T) {
	x, y := grid(8)
	z := make([]float64, len(x))
	for i := range z {
		z[i] = x[i] + y[i]
	}

	c, err := Compute("trend", x, y, z, Settings{Increment: 1.5, Permutations: 199}, rand.NewPCG(1, 2))
	require.NoError(t, err)
	require.NotEmpty(t, c.Bins)

	first := c.Bins[0]
	assert.Greater(t, first.MoranI, 0.5)
	assert.Less(t, first.PValue, 0.01)
	assert.True(t, c.AnySignificant(0.05))
	assert.InDelta(t, -1.0/63, first.Expected, 1e-12)

	// Far classes of a linear gradient are negatively autocorrelated.
	last := c.Bins[len(c.Bins)-1]
	assert.Less(t, last.MoranI, 0.0)
}

func TestCompute_PairAccounting(t *testing.T) {
	x, y := grid(3)
	z := []float64{1, 3, 2, 5, 4, 6, 9, 7, 8}

	c, err := Compute("pairs", x, y, z, Settings{Increment: 1.01, Permutations: 9}, rand.NewPCG(3, 4))
	require.NoError(t, err)

	// Unit-distance neighbours on a 3×3 lattice: 12 pairs in [0, 1.01).
	require.NotEmpty(t, c.Bins)
	assert.Equal(t, 12, c.Bins[0].Pairs)
	assert.InDelta(t, 1.0, c.Bins[0].MeanDistance, 1e-12)

	total := 0
	for _, b := range c.Bins {
		total += b.Pairs
		assert.Greater(t, b.PValue, 0.0)
		assert.LessOrEqual(t, b.PValue, 1.0)
	}
	assert.Equal(t, 36, total, "all 9*8/2 pairs are classified")

	limited, err := Compute("pairs", x, y, z, Settings{Increment: 1.01, MaxDistance: 1.5, Permutations: 9}, rand.NewPCG(3, 4))
	require.NoError(t, err)
	total = 0
	for _, b := range limited.Bins {
		total += b.Pairs
	}
	assert.Equal(t, 12+8, total, "neighbours plus diagonals")
}

func TestCompute_NoiseMostlyNonSignificant(t *testing.T) {
	x, y := grid(10)
	r := rand.New(rand.NewPCG(5, 6))
	z := make([]float64, len(x))
	for i := range z {
		z[i] = r.NormFloat64()
	}
	c, err := Compute("noise", x, y, z, Settings{Increment: 2, Permutations: 199}, rand.NewPCG(7, 8))
	require.NoError(t, err)

	significant := 0
	for _, b := range c.Bins {
		if b.Significant(0.01) {
			significant++
		}
	}
	assert.LessOrEqual(t, significant, 1)
}

func TestCompute_Errors(t *testing.T) {
	x, y := grid(2)
	_, err := Compute("short", x[:2], y[:2], []float64{1, 2}, Settings{Increment: 1, Permutations: 9}, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = Compute("flat", x, y, []float64{1, 1, 1, 1}, Settings{Increment: 1, Permutations: 9}, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = Compute("inc", x, y, []float64{1, 2, 3, 4}, Settings{Permutations: 9}, rand.NewPCG(1, 1))
	assert.Error(t, err)

	_, err = Compute("len", x, y[:3], []float64{1, 2, 3, 4}, Settings{Increment: 1, Permutations: 9}, rand.NewPCG(1, 1))
	assert.Error(t, err)
}

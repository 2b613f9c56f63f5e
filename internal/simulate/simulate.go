// Package simulate propagates coefficient uncertainty through derived
// quantities by drawing coefficient vectors from their approximate sampling
// distribution and summarising the resulting curves pointwise.
//
// Correlated coefficients must be drawn jointly. DrawIndependent exists for
// coefficients that are independent by construction and for diagnostics that
// show how much the naive approach misstates interval widths.
package simulate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

// DrawJoint returns n rows drawn from a multivariate normal with mean coef
// and covariance cov.
func DrawJoint(coef []float64, cov mat.Symmetric, n int, src rand.Source) (*mat.Dense, error) {
	if cov.SymmetricDim() != len(coef) {
		return nil, fmt.Errorf("covariance is %d×%d, coefficient vector has %d entries", cov.SymmetricDim(), cov.SymmetricDim(), len(coef))
	}
	if n < 1 {
		return nil, errors.New("need at least one draw")
	}
	mvn, ok := distmv.NewNormal(coef, cov, src)
	if !ok {
		return nil, errors.New("covariance matrix is not positive definite")
	}
	draws := mat.NewDense(n, len(coef), nil)
	row := make([]float64, len(coef))
	for i := 0; i < n; i++ {
		mvn.Rand(row)
		draws.SetRow(i, row)
	}
	return draws, nil
}

// DrawIndependent returns n rows where each coefficient is drawn from its own
// normal approximation, ignoring any covariance.
func DrawIndependent(coef, se []float64, n int, src rand.Source) (*mat.Dense, error) {
	if len(se) != len(coef) {
		return nil, fmt.Errorf("%d standard errors for %d coefficients", len(se), len(coef))
	}
	if n < 1 {
		return nil, errors.New("need at least one draw")
	}
	r := rand.New(src)
	draws := mat.NewDense(n, len(coef), nil)
	for i := 0; i < n; i++ {
		for j := range coef {
			draws.Set(i, j, coef[j]+se[j]*r.NormFloat64())
		}
	}
	return draws, nil
}

// Summary is the median and central interval of a simulated quantity.
type Summary struct {
	Median, Lower, Upper float64
}

// Width returns Upper - Lower.
func (s Summary) Width() float64 { return s.Upper - s.Lower }

// Interval summarises values with a central interval of the given width,
// e.g. 0.95. values is not modified.
func Interval(values []float64, width float64) Summary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	tail := (1 - width) / 2
	return Summary{
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Lower:  stat.Quantile(tail, stat.Empirical, sorted, nil),
		Upper:  stat.Quantile(1-tail, stat.Empirical, sorted, nil),
	}
}

// Func evaluates a derived quantity of one coefficient vector at x.
type Func func(coef []float64, x float64) float64

// Band is a pointwise summary of simulated curves over a grid.
type Band struct {
	Name   string
	X      []float64
	Median []float64
	Lower  []float64
	Upper  []float64
}

// At returns the summary at grid index i.
func (b Band) At(i int) Summary {
	return Summary{Median: b.Median[i], Lower: b.Lower[i], Upper: b.Upper[i]}
}

// Curve evaluates f for every draw at every grid point and summarises each
// grid point with its median and central interval.
func Curve(name string, draws mat.Matrix, grid []float64, f Func, width float64) Band {
	n, p := draws.Dims()
	b := Band{
		Name:   name,
		X:      append([]float64(nil), grid...),
		Median: make([]float64, len(grid)),
		Lower:  make([]float64, len(grid)),
		Upper:  make([]float64, len(grid)),
	}

	values := make([][]float64, len(grid))
	for g := range grid {
		values[g] = make([]float64, n)
	}
	coef := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(coef, i, draws)
		for g, x := range grid {
			values[g][i] = f(coef, x)
		}
	}
	for g := range grid {
		s := Interval(values[g], width)
		b.Median[g], b.Lower[g], b.Upper[g] = s.Median, s.Lower, s.Upper
	}
	return b
}

// Scalar evaluates a quantity that does not depend on a grid for each draw.
func Scalar(draws mat.Matrix, f func(coef []float64) float64, width float64) Summary {
	n, p := draws.Dims()
	values := make([]float64, n)
	coef := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(coef, i, draws)
		values[i] = f(coef)
	}
	return Interval(values, width)
}

// Grid returns n evenly spaced points from lo to hi inclusive.
func Grid(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

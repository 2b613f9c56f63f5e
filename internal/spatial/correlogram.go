// Package spatial checks model residuals for spatial autocorrelation with a
// Moran's I correlogram over distance classes.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Settings controls the distance classes and the permutation test.
type Settings struct {
	Increment    float64 // width of each distance class
	MaxDistance  float64 // pairs further apart are ignored; 0 keeps every pair
	Permutations int
}

// Bin is one distance class of a correlogram.
type Bin struct {
	Lower, Upper float64
	MeanDistance float64
	Pairs        int // unordered pairs in the class
	MoranI       float64
	Expected     float64 // -1/(n-1)
	PValue       float64 // two-sided permutation p-value
}

// Significant reports whether the class departs from zero autocorrelation.
func (b Bin) Significant(alpha float64) bool { return b.PValue < alpha }

// Correlogram is a residual correlogram.
type Correlogram struct {
	Label string
	N     int
	Bins  []Bin
}

// Compute builds the correlogram of values z located at (x, y). Moran's I of
// class k uses binary weights for pairs whose distance falls in
// [k*inc, (k+1)*inc). Classes without pairs are omitted. Each class is tested
// by permuting z across locations.
func Compute(label string, x, y, z []float64, s Settings, src rand.Source) (*Correlogram, error) {
	n := len(z)
	if len(x) != n || len(y) != n {
		return nil, fmt.Errorf("%s: coordinate and value lengths differ (%d, %d, %d)", label, len(x), len(y), n)
	}
	if n < 3 {
		return nil, fmt.Errorf("%s: need at least 3 points, got %d", label, n)
	}
	if s.Increment <= 0 {
		return nil, errors.New("correlogram increment must be positive")
	}
	if s.Permutations < 1 {
		return nil, errors.New("correlogram needs at least one permutation")
	}

	mean := stat.Mean(z, nil)
	dev := make([]float64, n)
	for i := range z {
		dev[i] = z[i] - mean
	}
	ss := floats.Dot(dev, dev)
	if ss == 0 {
		return nil, fmt.Errorf("%s: values have zero variance", label)
	}

	// Assign each unordered pair to its class once.
	type pair struct{ i, j int }
	classes := map[int][]pair{}
	distSum := map[int]float64{}
	maxClass := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(x[i]-x[j], y[i]-y[j])
			if s.MaxDistance > 0 && d > s.MaxDistance {
				continue
			}
			k := int(math.Floor(d / s.Increment))
			classes[k] = append(classes[k], pair{i, j})
			distSum[k] += d
			if k > maxClass {
				maxClass = k
			}
		}
	}

	moran := func(v []float64, pairs []pair) float64 {
		cross := 0.0
		for _, p := range pairs {
			cross += v[p.i] * v[p.j]
		}
		// Binary symmetric weights: W = 2*len(pairs) and the double sum counts each pair twice.
		return float64(n) / ss * cross / float64(len(pairs))
	}

	r := rand.New(src)
	perm := make([]float64, n)
	expected := -1 / float64(n-1)
	c := &Correlogram{Label: label, N: n}
	for k := 0; k <= maxClass; k++ {
		pairs := classes[k]
		if len(pairs) == 0 {
			continue
		}
		obs := moran(dev, pairs)

		copy(perm, dev)
		extreme := 0
		for p := 0; p < s.Permutations; p++ {
			r.Shuffle(n, func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
			if math.Abs(moran(perm, pairs)-expected) >= math.Abs(obs-expected) {
				extreme++
			}
		}

		c.Bins = append(c.Bins, Bin{
			Lower:        float64(k) * s.Increment,
			Upper:        float64(k+1) * s.Increment,
			MeanDistance: distSum[k] / float64(len(pairs)),
			Pairs:        len(pairs),
			MoranI:       obs,
			Expected:     expected,
			PValue:       float64(extreme+1) / float64(s.Permutations+1),
		})
	}
	return c, nil
}

// AnySignificant reports whether any class is significant at alpha.
func (c *Correlogram) AnySignificant(alpha float64) bool {
	for _, b := range c.Bins {
		if b.Significant(alpha) {
			return true
		}
	}
	return false
}

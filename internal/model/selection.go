package model

import (
	"fmt"
	"math"
	"sort"
)

// AICc is the Akaike information criterion with the small-sample correction
// 2k(k+1)/(n-k-1). It is +Inf when n <= k+1.
func AICc(logLik float64, k, n int) float64 {
	denom := n - k - 1
	if denom <= 0 {
		return math.Inf(1)
	}
	kf := float64(k)
	return -2*logLik + 2*kf + 2*kf*(kf+1)/float64(denom)
}

// Candidate is one row of a model comparison table.
type Candidate struct {
	Label  string
	K      int
	N      int
	LogLik float64
	AICc   float64
	Delta  float64 // AICc minus the smallest AICc of the table
	Weight float64 // Akaike weight
}

// Table ranks a family of fits fitted to the same data.
type Table struct {
	Family string
	Rows   []Candidate
}

// Rank sorts fits by ascending AICc and fills in deltas and Akaike weights.
// It does not pick a model: Rows[0] is simply the lowest criterion.
func Rank(family string, fits []*Fit) (Table, error) {
	t := Table{Family: family}
	if len(fits) == 0 {
		return t, fmt.Errorf("%s: no fits to rank", family)
	}
	n := fits[0].N
	for _, f := range fits {
		if f.N != n {
			return t, fmt.Errorf("%s: %s has %d observations, %s has %d; AICc is only comparable on the same data",
				family, f.Label, f.N, fits[0].Label, n)
		}
		t.Rows = append(t.Rows, Candidate{
			Label:  f.Label,
			K:      f.K,
			N:      f.N,
			LogLik: f.LogLik,
			AICc:   f.AICc(),
		})
	}
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].AICc < t.Rows[j].AICc })

	best := t.Rows[0].AICc
	total := 0.0
	for i := range t.Rows {
		t.Rows[i].Delta = t.Rows[i].AICc - best
		t.Rows[i].Weight = math.Exp(-t.Rows[i].Delta / 2)
		total += t.Rows[i].Weight
	}
	for i := range t.Rows {
		t.Rows[i].Weight /= total
	}
	return t, nil
}

// Lowest returns the label of the fit with the smallest AICc.
func (t Table) Lowest() string {
	if len(t.Rows) == 0 {
		return ""
	}
	return t.Rows[0].Label
}

// Row returns the candidate with the given label.
func (t Table) Row(label string) (Candidate, bool) {
	for _, r := range t.Rows {
		if r.Label == label {
			return r, true
		}
	}
	return Candidate{}, false
}

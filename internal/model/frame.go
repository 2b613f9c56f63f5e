// Package model fits the regression families used by the re-analysis:
// binomial GLMs with a logit link, Gaussian linear models and a
// heteroskedastic power-law model fitted by maximum likelihood. It also
// ranks fits by AICc and computes per-term tests.
package model

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// InterceptName is the name of the intercept coefficient.
const InterceptName = "(Intercept)"

// Frame is a set of equally long named numeric columns.
type Frame struct {
	n     int
	cols  map[string][]float64
	order []string
}

// NewFrame returns an empty frame of n rows.
func NewFrame(n int) *Frame {
	return &Frame{n: n, cols: make(map[string][]float64)}
}

// Add stores a column. The slice is copied.
func (f *Frame) Add(name string, values []float64) error {
	if len(values) != f.n {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.n)
	}
	if _, dup := f.cols[name]; dup {
		return fmt.Errorf("column %q already present", name)
	}
	f.cols[name] = append([]float64(nil), values...)
	f.order = append(f.order, name)
	return nil
}

// MustAdd is Add for frames built from trusted inputs; it panics on error.
func (f *Frame) MustAdd(name string, values []float64) *Frame {
	if err := f.Add(name, values); err != nil {
		panic(err)
	}
	return f
}

// Col returns the named column.
func (f *Frame) Col(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string { return append([]string(nil), f.order...) }

// Term is a product of frame variables: a main effect when it holds one
// variable, an interaction otherwise. Variables are numeric or 0/1 dummies,
// so each term maps to exactly one design column.
type Term struct {
	Vars []string
}

// T builds a term from its variables.
func T(vars ...string) Term {
	return Term{Vars: append([]string(nil), vars...)}
}

// Label renders the term the way model formulae do, e.g. "stage:urban50".
func (t Term) Label() string { return strings.Join(t.Vars, ":") }

// Order is the number of variables in the term.
func (t Term) Order() int { return len(t.Vars) }

// Contains reports whether every variable of o also appears in t.
func (t Term) Contains(o Term) bool {
	for _, v := range o.Vars {
		found := false
		for _, w := range t.Vars {
			if v == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Same reports whether t and o have the same variables in any order.
func (t Term) Same(o Term) bool {
	return t.Order() == o.Order() && t.Contains(o)
}

// Crossed expands a*b*c into every main effect and interaction, ordered by
// degree and then by position, as a:b, a:c, b:c.
func Crossed(vars ...string) []Term {
	m := len(vars)
	masks := make([]int, 0, 1<<m)
	for mask := 1; mask < 1<<m; mask++ {
		masks = append(masks, mask)
	}
	sort.SliceStable(masks, func(i, j int) bool {
		return bits.OnesCount(uint(masks[i])) < bits.OnesCount(uint(masks[j]))
	})

	terms := make([]Term, 0, len(masks))
	for _, mask := range masks {
		var t Term
		for i, v := range vars {
			if mask&(1<<i) != 0 {
				t.Vars = append(t.Vars, v)
			}
		}
		terms = append(terms, t)
	}
	return terms
}

// Union merges term lists, drops duplicates and orders the result by degree,
// keeping first-appearance order within a degree.
func Union(lists ...[]Term) []Term {
	var out []Term
	for _, list := range lists {
		for _, t := range list {
			dup := false
			for _, o := range out {
				if o.Same(t) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// Formula renders a right-hand side, e.g. "1 + stage + urban50 + stage:urban50".
func Formula(terms []Term) string {
	parts := []string{"1"}
	for _, t := range terms {
		parts = append(parts, t.Label())
	}
	return strings.Join(parts, " + ")
}

// Design builds the model matrix: an intercept column followed by one
// column per term.
func (f *Frame) Design(terms []Term) (*mat.Dense, []string, error) {
	p := len(terms) + 1
	x := mat.NewDense(f.n, p, nil)
	names := make([]string, p)
	names[0] = InterceptName
	for i := 0; i < f.n; i++ {
		x.Set(i, 0, 1)
	}

	for j, t := range terms {
		if t.Order() == 0 {
			return nil, nil, fmt.Errorf("empty term at position %d", j)
		}
		names[j+1] = t.Label()
		cols := make([][]float64, len(t.Vars))
		for k, v := range t.Vars {
			c, ok := f.cols[v]
			if !ok {
				return nil, nil, fmt.Errorf("term %s: unknown variable %q", t.Label(), v)
			}
			cols[k] = c
		}
		for i := 0; i < f.n; i++ {
			prod := 1.0
			for _, c := range cols {
				prod *= c[i]
			}
			x.Set(i, j+1, prod)
		}
	}
	return x, names, nil
}

package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Test statistics reported by TermTest.Test.
const (
	LRChisq   = "LR Chisq"
	FStat     = "F"
	WaldChisq = "Wald Chisq"
)

// TermTest is one row of an analysis of deviance or variance table.
type TermTest struct {
	Term      string
	Df        int
	Statistic float64
	PValue    float64
	Test      string
}

// TypeII returns the type II test of every term of a binomial or Gaussian
// fit. Each term is tested against the model holding every term that does not
// contain it, so main effects are assessed ignoring their interactions.
// Binomial fits use likelihood-ratio χ² tests; Gaussian fits use F tests
// against the residual variance of the full model. Power-law fits get
// marginal Wald tests, see WaldTests.
func TypeII(f *Frame, fit *Fit) ([]TermTest, error) {
	switch fit.Family {
	case PowerLaw:
		return WaldTests(fit), nil
	case Binomial, Gaussian:
	default:
		return nil, fmt.Errorf("%s: no type II tests for family %q", fit.Label, fit.Family)
	}

	refit := func(terms []Term) (*Fit, error) {
		if fit.Family == Binomial {
			return FitBinomial(fit.Label, f, fit.Response, fit.Trials, terms)
		}
		return FitLinear(fit.Label, f, fit.Response, terms)
	}

	out := make([]TermTest, 0, len(fit.Terms))
	for _, term := range fit.Terms {
		var reduced []Term
		for _, other := range fit.Terms {
			if !other.Contains(term) {
				reduced = append(reduced, other)
			}
		}
		augmented := Union(reduced, []Term{term})

		red, err := refit(reduced)
		if err != nil {
			return nil, fmt.Errorf("%s: refit without %s: %w", fit.Label, term.Label(), err)
		}
		aug, err := refit(augmented)
		if err != nil {
			return nil, fmt.Errorf("%s: refit with %s: %w", fit.Label, term.Label(), err)
		}

		df := len(aug.Coef) - len(red.Coef)
		test := TermTest{Term: term.Label(), Df: df}
		if fit.Family == Binomial {
			test.Test = LRChisq
			test.Statistic = math.Max(red.Deviance-aug.Deviance, 0)
			test.PValue = chisqUpper(test.Statistic, float64(df))
		} else {
			test.Test = FStat
			fullMS := fit.Deviance / float64(fit.DFResid)
			test.Statistic = math.Max(red.Deviance-aug.Deviance, 0) / float64(df) / fullMS
			dist := distuv.F{D1: float64(df), D2: float64(fit.DFResid)}
			test.PValue = 1 - dist.CDF(test.Statistic)
		}
		out = append(out, test)
	}
	return out, nil
}

// WaldTests returns the marginal Wald χ² test of each coefficient.
func WaldTests(fit *Fit) []TermTest {
	se := fit.SE()
	out := make([]TermTest, len(fit.Coef))
	for i, c := range fit.Coef {
		w := (c / se[i]) * (c / se[i])
		out[i] = TermTest{
			Term:      fit.Names[i],
			Df:        1,
			Statistic: w,
			PValue:    chisqUpper(w, 1),
			Test:      WaldChisq,
		}
	}
	return out
}

func chisqUpper(x, df float64) float64 {
	return distuv.ChiSquared{K: df}.Survival(x)
}

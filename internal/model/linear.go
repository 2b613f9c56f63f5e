package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitLinear fits an ordinary least-squares model through a QR decomposition.
// The coefficient covariance is s²(XᵀX)⁻¹ with s² = RSS/(n-p); the
// log-likelihood is the Gaussian maximum-likelihood value and K counts the
// residual variance as a parameter.
func FitLinear(label string, f *Frame, response string, terms []Term) (*Fit, error) {
	y, ok := f.Col(response)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", label, response)
	}
	x, names, err := f.Design(terms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	n, p := x.Dims()
	if n <= p {
		return nil, fmt.Errorf("%s: %d rows cannot identify %d coefficients", label, n, p)
	}

	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var qr mat.QR
	qr.Factorize(x)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yv); err != nil {
		return nil, fmt.Errorf("%s: least squares: %w", label, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	resid := make([]float64, n)
	fit := make([]float64, n)
	rss := 0.0
	for i := 0; i < n; i++ {
		fit[i] = fitted.AtVec(i)
		resid[i] = y[i] - fit[i]
		rss += resid[i] * resid[i]
	}

	s2 := rss / float64(n-p)
	xtxInv, err := invertSPD(crossprod(x))
	if err != nil {
		return nil, fmt.Errorf("%s: design is rank deficient: %w", label, err)
	}
	cov := mat.NewSymDense(p, nil)
	cov.ScaleSym(s2, xtxInv)

	nf := float64(n)
	ll := -nf / 2 * (math.Log(2*math.Pi) + math.Log(rss/nf) + 1)

	return &Fit{
		Label:     label,
		Family:    Gaussian,
		Formula:   fmt.Sprintf("%s ~ %s", response, Formula(terms)),
		Names:     names,
		Coef:      mat.Col(nil, 0, &beta),
		Cov:       cov,
		Fitted:    fit,
		Residuals: resid,
		LogLik:    ll,
		K:         p + 1,
		N:         n,
		Deviance:  rss,
		DFResid:   n - p,
		Scale:     s2,
		Response:  response,
		Terms:     terms,
	}, nil
}

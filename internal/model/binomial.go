package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	irlsMaxIter   = 25
	irlsTolerance = 1e-8
)

// FitBinomial fits a logit-link binomial GLM of successes out of trials by
// iteratively reweighted least squares. Convergence follows the relative
// deviance change rule |dev - dev_old| / (|dev| + 0.1) < 1e-8.
func FitBinomial(label string, f *Frame, successes, trials string, terms []Term) (*Fit, error) {
	k, ok := f.Col(successes)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", label, successes)
	}
	n, ok := f.Col(trials)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", label, trials)
	}
	for i := range n {
		if n[i] <= 0 || k[i] < 0 || k[i] > n[i] {
			return nil, fmt.Errorf("%s: row %d has %g successes out of %g trials", label, i+1, k[i], n[i])
		}
	}

	x, names, err := f.Design(terms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	rows, p := x.Dims()
	if rows <= p {
		return nil, fmt.Errorf("%s: %d rows cannot identify %d coefficients", label, rows, p)
	}

	mu := make([]float64, rows)
	eta := make([]float64, rows)
	for i := range mu {
		mu[i] = (k[i] + 0.5) / (n[i] + 1)
		eta[i] = math.Log(mu[i] / (1 - mu[i]))
	}

	xw := mat.NewDense(rows, p, nil)
	zw := mat.NewVecDense(rows, nil)
	var beta mat.VecDense
	devOld := math.Inf(1)
	dev := 0.0
	converged := false
	for iter := 0; iter < irlsMaxIter; iter++ {
		for i := 0; i < rows; i++ {
			v := mu[i] * (1 - mu[i])
			sw := math.Sqrt(n[i] * v)
			z := eta[i] + (k[i]/n[i]-mu[i])/v
			for j := 0; j < p; j++ {
				xw.Set(i, j, sw*x.At(i, j))
			}
			zw.SetVec(i, sw*z)
		}

		var qr mat.QR
		qr.Factorize(xw)
		if err := qr.SolveVecTo(&beta, false, zw); err != nil {
			return nil, fmt.Errorf("%s: weighted least squares: %w", label, err)
		}

		var fittedEta mat.VecDense
		fittedEta.MulVec(x, &beta)
		for i := 0; i < rows; i++ {
			eta[i] = fittedEta.AtVec(i)
			mu[i] = clampProb(logistic(eta[i]))
		}

		dev = binomialDeviance(k, n, mu)
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < irlsTolerance {
			converged = true
			break
		}
		devOld = dev
	}
	if !converged {
		return nil, fmt.Errorf("%s: %w after %d IRLS iterations", label, ErrNonConvergence, irlsMaxIter)
	}

	for i := 0; i < rows; i++ {
		sw := math.Sqrt(n[i] * mu[i] * (1 - mu[i]))
		for j := 0; j < p; j++ {
			xw.Set(i, j, sw*x.At(i, j))
		}
	}
	cov, err := invertSPD(crossprod(xw))
	if err != nil {
		return nil, fmt.Errorf("%s: information matrix: %w", label, err)
	}

	resid := make([]float64, rows)
	ll := 0.0
	for i := 0; i < rows; i++ {
		resid[i] = (k[i] - n[i]*mu[i]) / math.Sqrt(n[i]*mu[i]*(1-mu[i]))
		ll += logChoose(n[i], k[i]) + xlogy(k[i], mu[i]) + xlogy(n[i]-k[i], 1-mu[i])
	}

	return &Fit{
		Label:     label,
		Family:    Binomial,
		Formula:   fmt.Sprintf("cbind(%s, %s - %s) ~ %s", successes, trials, successes, Formula(terms)),
		Names:     names,
		Coef:      mat.Col(nil, 0, &beta),
		Cov:       cov,
		Fitted:    mu,
		Residuals: resid,
		LogLik:    ll,
		K:         p,
		N:         rows,
		Deviance:  dev,
		DFResid:   rows - p,
		Scale:     1,
		Response:  successes,
		Trials:    trials,
		Terms:     terms,
	}, nil
}

func logistic(eta float64) float64 { return 1 / (1 + math.Exp(-eta)) }

// clampProb keeps fitted probabilities off 0 and 1 so weights stay finite
// under quasi-separation.
func clampProb(p float64) float64 {
	const eps = 1e-10
	return math.Min(math.Max(p, eps), 1-eps)
}

// Logistic is the inverse logit.
func Logistic(eta float64) float64 { return logistic(eta) }

// xlogy returns x*log(y) with 0*log(0) = 0.
func xlogy(x, y float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(y)
}

func logChoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func binomialDeviance(k, n, mu []float64) float64 {
	dev := 0.0
	for i := range k {
		fail := n[i] - k[i]
		if k[i] > 0 {
			dev += k[i] * math.Log(k[i]/(n[i]*mu[i]))
		}
		if fail > 0 {
			dev += fail * math.Log(fail/(n[i]*(1-mu[i])))
		}
	}
	return 2 * dev
}

package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Coefficient names of power-law fits.
const (
	PrefactorIntercept = "a0"
	PrefactorSlope     = "a1"
	ExponentIntercept  = "b0"
	ExponentSlope      = "b1"
)

// PowerLawStart is the declared starting point of a power-law fit.
// Baseline models (no covariate) use only A0, B0 and Delta.
type PowerLawStart struct {
	A0, A1, B0, B1 float64
	Delta          float64
}

// PowerLawSettings bounds the optimizer.
type PowerLawSettings struct {
	MaxIterations int
}

// PowerLawSpec names the frame columns of a power-law fit.
type PowerLawSpec struct {
	Response  string // y
	Size      string // x
	Covariate string // u; empty for the baseline model
}

// FitPowerLaw fits
//
//	y = (a0 + a1*u) * x^(b0 + b1*u),  Var(y) = sigma² * |mu|^(2*delta)
//
// by maximum likelihood with sigma² profiled out, using BFGS from the
// declared start with the analytic gradient. The coefficient covariance is
// the inverse of the Hessian of the profile negative log-likelihood at the
// optimum, differenced from the analytic gradient.
//
// A non-finite objective at the start, an optimizer that stops away from a
// stationary point, or a Hessian that is not positive definite all yield
// ErrNonConvergence. No other starting point is tried.
func FitPowerLaw(label string, f *Frame, spec PowerLawSpec, start PowerLawStart, settings PowerLawSettings) (*Fit, error) {
	y, ok := f.Col(spec.Response)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", label, spec.Response)
	}
	x, ok := f.Col(spec.Size)
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", label, spec.Size)
	}
	var u []float64
	if spec.Covariate != "" {
		if u, ok = f.Col(spec.Covariate); !ok {
			return nil, fmt.Errorf("%s: unknown column %q", label, spec.Covariate)
		}
	}
	for i := range x {
		if x[i] <= 0 {
			return nil, fmt.Errorf("%s: row %d has non-positive size %g", label, i+1, x[i])
		}
	}

	m := newPowerLawModel(y, x, u)
	x0 := m.pack(start)
	nll := m.negLogLik

	if v := nll(x0); math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s: %w: objective is not finite at the declared start", label, ErrNonConvergence)
	}

	problem := optimize.Problem{
		Func: nll,
		Grad: m.gradient,
	}
	maxIter := settings.MaxIterations
	if maxIter <= 0 {
		maxIter = 500
	}
	result, err := optimize.Minimize(problem, x0, &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: 1e-6,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 20,
		},
	}, &optimize.BFGS{})
	if result == nil {
		return nil, fmt.Errorf("%s: %w: %v", label, ErrNonConvergence, err)
	}
	if err != nil || !converged(result.Status) {
		// A line search can fail at the optimum when the objective is flat to
		// rounding. Accept the point only if the gradient vanishes there.
		if !m.stationary(result.X, result.F) {
			return nil, fmt.Errorf("%s: %w: optimizer stopped with status %v: %v", label, ErrNonConvergence, result.Status, err)
		}
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, fmt.Errorf("%s: %w: objective is not finite at the optimum", label, ErrNonConvergence)
	}

	hess := m.hessian(result.X)
	full, err := invertSPD(hess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: Hessian at optimum: %v", label, ErrNonConvergence, err)
	}

	nCoef := len(result.X) - 1
	cov := mat.NewSymDense(nCoef, nil)
	for i := 0; i < nCoef; i++ {
		for j := i; j < nCoef; j++ {
			cov.SetSym(i, j, full.At(i, j))
		}
	}

	theta := result.X[:nCoef]
	delta := result.X[nCoef]
	mu := m.mean(theta)
	sigma2 := m.sigma2(mu, delta)
	resid := make([]float64, len(y))
	for i := range y {
		resid[i] = (y[i] - mu[i]) / (math.Sqrt(sigma2) * math.Pow(math.Abs(mu[i]), delta))
	}

	formula := fmt.Sprintf("%s ~ a * %s^b, a ~ 1, b ~ 1, var ~ |mu|^(2*delta)", spec.Response, spec.Size)
	if spec.Covariate != "" {
		formula = fmt.Sprintf("%s ~ a * %s^b, a ~ 1 + %s, b ~ 1 + %s, var ~ |mu|^(2*delta)",
			spec.Response, spec.Size, spec.Covariate, spec.Covariate)
	}

	return &Fit{
		Label:      label,
		Family:     PowerLaw,
		Formula:    formula,
		Names:      m.names(),
		Coef:       append([]float64(nil), theta...),
		Cov:        cov,
		Fitted:     mu,
		Residuals:  resid,
		LogLik:     -result.F,
		K:          nCoef + 2,
		N:          len(y),
		Deviance:   m.weightedRSS(mu, delta),
		DFResid:    len(y) - nCoef,
		Scale:      sigma2,
		VarPower:   delta,
		VarPowerSE: math.Sqrt(full.At(nCoef, nCoef)),
		Response:   spec.Response,
		Covariate:  spec.Covariate,
	}, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

// PowerLawMean evaluates (a0 + a1*u) * x^(b0 + b1*u) for a coefficient vector
// laid out as a fit with or without covariate.
func PowerLawMean(coef []float64, x, u float64) float64 {
	a, b := PowerLawParams(coef, u)
	return a * math.Pow(x, b)
}

// PowerLawParams returns the prefactor and exponent at covariate value u.
func PowerLawParams(coef []float64, u float64) (a, b float64) {
	if len(coef) == 2 {
		return coef[0], coef[1]
	}
	return coef[0] + coef[1]*u, coef[2] + coef[3]*u
}

// powerLawModel holds the data of one fit. Parameters are packed as
// (a0, b0, delta) or (a0, a1, b0, b1, delta).
type powerLawModel struct {
	y, x, u []float64
	logX    []float64
}

func newPowerLawModel(y, x, u []float64) *powerLawModel {
	logX := make([]float64, len(x))
	for i := range x {
		logX[i] = math.Log(x[i])
	}
	return &powerLawModel{y: y, x: x, u: u, logX: logX}
}

func (m *powerLawModel) withCovariate() bool { return m.u != nil }

func (m *powerLawModel) names() []string {
	if m.withCovariate() {
		return []string{PrefactorIntercept, PrefactorSlope, ExponentIntercept, ExponentSlope}
	}
	return []string{PrefactorIntercept, ExponentIntercept}
}

func (m *powerLawModel) pack(s PowerLawStart) []float64 {
	if m.withCovariate() {
		return []float64{s.A0, s.A1, s.B0, s.B1, s.Delta}
	}
	return []float64{s.A0, s.B0, s.Delta}
}

func (m *powerLawModel) mean(theta []float64) []float64 {
	mu := make([]float64, len(m.y))
	for i := range mu {
		u := 0.0
		if m.withCovariate() {
			u = m.u[i]
		}
		a, b := PowerLawParams(theta, u)
		mu[i] = a * math.Exp(b*m.logX[i])
	}
	return mu
}

func (m *powerLawModel) weightedRSS(mu []float64, delta float64) float64 {
	s := 0.0
	for i := range mu {
		r := (m.y[i] - mu[i]) / math.Pow(math.Abs(mu[i]), delta)
		s += r * r
	}
	return s
}

func (m *powerLawModel) sigma2(mu []float64, delta float64) float64 {
	return m.weightedRSS(mu, delta) / float64(len(mu))
}

// negLogLik is the profile negative log-likelihood of packed parameters p.
func (m *powerLawModel) negLogLik(p []float64) float64 {
	theta := p[:len(p)-1]
	delta := p[len(p)-1]
	mu := m.mean(theta)

	logMu := 0.0
	for _, v := range mu {
		if !(v > 0) || math.IsInf(v, 0) {
			return math.Inf(1)
		}
		logMu += math.Log(v)
	}
	s2 := m.sigma2(mu, delta)
	if !(s2 > 0) || math.IsInf(s2, 0) {
		return math.Inf(1)
	}
	n := float64(len(mu))
	return n/2*math.Log(2*math.Pi*s2) + delta*logMu + n/2
}

// stationaryTolerance bounds the largest gradient component, relative to
// max(1, |F|), at which a stopped optimizer is accepted.
const stationaryTolerance = 1e-4

func (m *powerLawModel) stationary(p []float64, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	grad := make([]float64, len(p))
	m.gradient(grad, p)
	tol := stationaryTolerance * math.Max(1, math.Abs(f))
	for _, g := range grad {
		if !(math.Abs(g) <= tol) {
			return false
		}
	}
	return true
}

// gradient writes the gradient of negLogLik at p into grad. With
// r_i = (y_i - mu_i) mu_i^-delta and s2 = mean(r_i^2),
//
//	dF/dtheta = sum_i (delta/mu_i - r_i mu_i^-delta (1 + delta (y_i-mu_i)/mu_i) / s2) dmu_i/dtheta
//	dF/ddelta = sum_i log(mu_i) (1 - r_i^2/s2)
//
// Outside the domain, where the objective is +Inf, every component is NaN.
func (m *powerLawModel) gradient(grad, p []float64) {
	for j := range grad {
		grad[j] = 0
	}
	theta := p[:len(p)-1]
	delta := p[len(p)-1]
	mu := m.mean(theta)
	for _, v := range mu {
		if !(v > 0) || math.IsInf(v, 0) {
			for j := range grad {
				grad[j] = math.NaN()
			}
			return
		}
	}
	s2 := m.sigma2(mu, delta)
	if !(s2 > 0) || math.IsInf(s2, 0) {
		for j := range grad {
			grad[j] = math.NaN()
		}
		return
	}

	last := len(p) - 1
	for i, v := range mu {
		scale := math.Pow(v, -delta)
		e := m.y[i] - v
		r := e * scale
		// dF/dmu_i
		g := delta/v - r*scale*(1+delta*e/v)/s2

		u := 0.0
		if m.withCovariate() {
			u = m.u[i]
		}
		a, _ := PowerLawParams(theta, u)
		dA := v / a          // dmu/da
		dB := v * m.logX[i] // dmu/db
		if m.withCovariate() {
			grad[0] += g * dA
			grad[1] += g * dA * u
			grad[2] += g * dB
			grad[3] += g * dB * u
		} else {
			grad[0] += g * dA
			grad[1] += g * dB
		}
		grad[last] += math.Log(v) * (1 - r*r/s2)
	}
}

// hessian differences the analytic gradient at p and symmetrises the result.
func (m *powerLawModel) hessian(p []float64) *mat.SymDense {
	n := len(p)
	jac := mat.NewDense(n, n, nil)
	fd.Jacobian(jac, m.gradient, p, &fd.JacobianSettings{Formula: fd.Central})
	hess := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hess.SetSym(i, j, (jac.At(i, j)+jac.At(j, i))/2)
		}
	}
	return hess
}

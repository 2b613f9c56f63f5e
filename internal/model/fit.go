package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNonConvergence is returned when an iterative fit stops before reaching
// an optimum from its declared starting point.
var ErrNonConvergence = errors.New("model failed to converge")

// Family identifies the likelihood a Fit was obtained under.
type Family string

const (
	Binomial Family = "binomial"
	Gaussian Family = "gaussian"
	PowerLaw Family = "powerlaw"
)

// Fit is a fitted model. Cov is the full covariance matrix of Coef, needed
// because derived quantities are nonlinear in correlated coefficients.
type Fit struct {
	Label   string
	Family  Family
	Formula string

	Names []string
	Coef  []float64
	Cov   *mat.SymDense

	Fitted    []float64
	Residuals []float64 // Pearson residuals; raw residuals for Gaussian fits

	LogLik   float64
	K        int     // estimated parameters, variance parameters included
	N        int     // observations
	Deviance float64 // binomial deviance, residual sum of squares for Gaussian fits
	DFResid  int
	Scale    float64 // residual variance for Gaussian fits, sigma^2 for power-law fits

	// Power-law variance function parameter and its standard error.
	VarPower   float64
	VarPowerSE float64

	// Model terms, kept so reduced models can be refitted.
	Response  string
	Trials    string
	Terms     []Term
	Covariate string
}

// SE returns the standard errors of the coefficients.
func (f *Fit) SE() []float64 {
	se := make([]float64, len(f.Coef))
	for i := range se {
		se[i] = math.Sqrt(f.Cov.At(i, i))
	}
	return se
}

// Index returns the position of the named coefficient.
func (f *Fit) Index(name string) (int, bool) {
	for i, n := range f.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// CoefOr returns the named coefficient, or def when the model lacks it.
func (f *Fit) CoefOr(name string, def float64) float64 {
	if i, ok := f.Index(name); ok {
		return f.Coef[i]
	}
	return def
}

// AICc returns the small-sample corrected Akaike information criterion.
func (f *Fit) AICc() float64 { return AICc(f.LogLik, f.K, f.N) }

// Correlation returns the correlation between coefficients i and j.
func (f *Fit) Correlation(i, j int) float64 {
	return f.Cov.At(i, j) / math.Sqrt(f.Cov.At(i, i)*f.Cov.At(j, j))
}

func (f *Fit) String() string {
	return fmt.Sprintf("%s [%s] %s: logLik=%.3f k=%d n=%d AICc=%.3f", f.Label, f.Family, f.Formula, f.LogLik, f.K, f.N, f.AICc())
}

// invertSPD returns the inverse of a symmetric positive definite matrix.
func invertSPD(a mat.Symmetric) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, errors.New("matrix is not positive definite")
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// crossprod returns XᵀX.
func crossprod(x mat.Matrix) *mat.SymDense {
	_, c := x.Dims()
	out := mat.NewSymDense(c, nil)
	out.SymOuterK(1, x.T())
	return out
}

package fit

import (
	"fmt"
	"math"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/mat"
)

var ln2Pi = math.Log(2 * math.Pi)

// GLS is the multivariate normal likelihood of observations y with a full
// covariance matrix. It is safe for concurrent use.
type GLS struct {
	y      []float64
	chol   mat.Cholesky
	logDet float64
}

// NewGLS factorises cov. A covariance that is not positive definite is
// reported as a SingularCovarianceError and never regularised.
func NewGLS(y []float64, cov mat.Symmetric) (*GLS, error) {
	n := cov.SymmetricDim()
	if n != len(y) {
		return nil, fmt.Errorf("%w: %d observations, %dx%d covariance", diffusion.ErrDimensionMismatch, len(y), n, n)
	}
	g := &GLS{y: append([]float64(nil), y...)}
	if ok := g.chol.Factorize(cov); !ok {
		return nil, &diffusion.SingularCovarianceError{Dim: n}
	}
	g.logDet = g.chol.LogDet()
	if math.IsNaN(g.logDet) || math.IsInf(g.logDet, 0) {
		return nil, &diffusion.SingularCovarianceError{Dim: n}
	}
	return g, nil
}

func (g *GLS) Len() int { return len(g.y) }

// Mahalanobis returns rᵀΣ⁻¹r for r = y - pred.
func (g *GLS) Mahalanobis(pred []float64) float64 {
	r := mat.NewVecDense(len(g.y), nil)
	for i, v := range g.y {
		r.SetVec(i, v-pred[i])
	}
	var z mat.VecDense
	if err := g.chol.SolveVecTo(&z, r); err != nil {
		return math.Inf(1)
	}
	return mat.Dot(r, &z)
}

func (g *GLS) LogLikelihood(pred []float64) float64 {
	return -0.5 * (g.Mahalanobis(pred) + g.logDet + float64(len(g.y))*ln2Pi)
}

// Solve returns the closed-form generalised least squares estimate for a
// linear model with design rows basis(x_i).
func (g *GLS) Solve(xs []float64, basis func(float64) []float64) ([]float64, error) {
	k := len(basis(xs[0]))
	design := mat.NewDense(len(xs), k, nil)
	for i, x := range xs {
		design.SetRow(i, basis(x))
	}

	// W = Σ⁻¹X, then (XᵀW)β = Wᵀy.
	var w mat.Dense
	if err := g.chol.SolveTo(&w, design); err != nil {
		return nil, &diffusion.SingularCovarianceError{Dim: len(g.y)}
	}
	var a mat.Dense
	a.Mul(design.T(), &w)
	var b mat.VecDense
	b.MulVec(w.T(), mat.NewVecDense(len(g.y), append([]float64(nil), g.y...)))

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return nil, fmt.Errorf("%w: design is rank deficient: %v", diffusion.ErrDimensionMismatch, err)
	}
	return append([]float64(nil), beta.RawVector().Data...), nil
}

// Gaussian is the independent normal likelihood of observations y with
// standard deviations sigma.
type Gaussian struct {
	y     []float64
	sigma []float64
}

func NewGaussian(y, sigma []float64) (*Gaussian, error) {
	if len(y) != len(sigma) {
		return nil, fmt.Errorf("%w: %d observations, %d uncertainties", diffusion.ErrDimensionMismatch, len(y), len(sigma))
	}
	for i, s := range sigma {
		if !(s > 0) {
			return nil, fmt.Errorf("%w: uncertainty %d is %g", diffusion.ErrInvalidOption, i, s)
		}
	}
	return &Gaussian{
		y:     append([]float64(nil), y...),
		sigma: append([]float64(nil), sigma...),
	}, nil
}

func (g *Gaussian) Len() int { return len(g.y) }

func (g *Gaussian) LogLikelihood(pred []float64) float64 {
	return g.LogLikelihoodScaled(pred, 0)
}

// LogLikelihoodScaled adds f²·pred² to every variance.
func (g *Gaussian) LogLikelihoodScaled(pred []float64, f float64) float64 {
	return GaussianLogLikelihood(g.y, g.sigma, pred, f)
}

// GaussianLogLikelihood is -0.5·Σ((y-pred)²/s² + ln 2πs²) with
// s² = sigma² + f²·pred².
func GaussianLogLikelihood(y, sigma, pred []float64, f float64) float64 {
	sum := 0.0
	for i := range y {
		s2 := sigma[i]*sigma[i] + f*f*pred[i]*pred[i]
		r := y[i] - pred[i]
		sum += r*r/s2 + math.Log(2*math.Pi*s2)
	}
	return -0.5 * sum
}

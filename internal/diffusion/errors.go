package diffusion

import (
	"errors"
	"fmt"
)

// Domain errors for the analysis pipeline.
var (
	// ErrInsufficientData indicates an interval or stage without enough observations.
	ErrInsufficientData = errors.New("diffusion: insufficient data")

	// ErrSingularCovariance indicates a covariance matrix that cannot be factorised.
	ErrSingularCovariance = errors.New("diffusion: singular covariance matrix")

	// ErrOptimizationDivergence indicates the point-estimate optimizer failed within its retry budget.
	ErrOptimizationDivergence = errors.New("diffusion: optimization diverged")

	// ErrSampling indicates MCMC produced no finite log-probabilities.
	ErrSampling = errors.New("diffusion: sampling failed")

	// ErrInvalidOption indicates an option value outside its valid range.
	ErrInvalidOption = errors.New("diffusion: invalid option")

	// ErrDimensionMismatch indicates inputs whose shapes disagree.
	ErrDimensionMismatch = errors.New("diffusion: dimension mismatch")
)

// InsufficientDataError reports a stage or interval that lacks observations.
// An Interval of zero means the whole stage failed.
type InsufficientDataError struct {
	Stage    string
	Interval float64
	Have     int
	Need     int
}

func (e *InsufficientDataError) Error() string {
	if e.Interval == 0 {
		return fmt.Sprintf("%s: insufficient data: have %d, need %d", e.Stage, e.Have, e.Need)
	}
	return fmt.Sprintf("%s: insufficient data at interval %g: have %d, need %d", e.Stage, e.Interval, e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// SingularCovarianceError reports a covariance matrix that is not positive definite.
type SingularCovarianceError struct {
	Dim int
}

func (e *SingularCovarianceError) Error() string {
	return fmt.Sprintf("covariance matrix (%dx%d) is not positive definite", e.Dim, e.Dim)
}

func (e *SingularCovarianceError) Unwrap() error {
	return ErrSingularCovariance
}

// OptimizationDivergenceError carries the best parameters seen before the
// retry budget ran out, for diagnostics.
type OptimizationDivergenceError struct {
	Attempts  int
	Best      []float64
	BestValue float64
	Last      error
}

func (e *OptimizationDivergenceError) Error() string {
	msg := fmt.Sprintf("optimization diverged after %d attempts (best objective %g at %v)", e.Attempts, e.BestValue, e.Best)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *OptimizationDivergenceError) Unwrap() error {
	return ErrOptimizationDivergence
}

// SamplingError reports a generation in which no walker had a finite log-probability.
type SamplingError struct {
	Generation int
	Walkers    int
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("generation %d: all %d walkers have non-finite log-probability", e.Generation, e.Walkers)
}

func (e *SamplingError) Unwrap() error {
	return ErrSampling
}

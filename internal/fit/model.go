// Package fit holds what the two regression stages share: model
// definitions, likelihoods, the optimise-then-sample driver and the
// immutable fit result.
package fit

import (
	"fmt"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model is a pure function of one input and a parameter vector.
type Model struct {
	Name   string
	Params []string
	Units  []string
	Func   func(x float64, p []float64) float64
	// Basis is set for models linear in their parameters:
	// Func(x, p) == Σ p[i]·Basis(x)[i].
	Basis func(x float64) []float64
	// Priors returns one uniform prior per parameter for the given data.
	// Their bounds also bound the point-estimate search.
	Priors func(x, y []float64) []distuv.Uniform
}

func (m Model) Linear() bool { return m.Basis != nil }

func (m Model) Dim() int { return len(m.Params) }

func (m Model) Validate() error {
	if m.Func == nil || len(m.Params) == 0 || m.Priors == nil {
		return fmt.Errorf("%w: model %q needs a function, parameters and priors", diffusion.ErrInvalidOption, m.Name)
	}
	if m.Units != nil && len(m.Units) != len(m.Params) {
		return fmt.Errorf("%w: model %q has %d units for %d parameters", diffusion.ErrDimensionMismatch, m.Name, len(m.Units), len(m.Params))
	}
	return nil
}

func (m Model) unit(i int) string {
	if m.Units == nil {
		return ""
	}
	return m.Units[i]
}

// Eval evaluates the model at every x into dst, allocating when dst is nil.
func (m Model) Eval(xs, p, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(xs))
	}
	for i, x := range xs {
		dst[i] = m.Func(x, p)
	}
	return dst
}

// Bounds returns the prior support as optimiser bounds.
func Bounds(priors []distuv.Uniform) (lower, upper []float64) {
	lower = make([]float64, len(priors))
	upper = make([]float64, len(priors))
	for i, p := range priors {
		lower[i], upper[i] = p.Min, p.Max
	}
	return lower, upper
}

// LogPrior sums the prior log densities, returning -Inf outside the
// support.
func LogPrior(priors []distuv.Uniform, p []float64) float64 {
	lp := 0.0
	for i, pr := range priors {
		lp += pr.LogProb(p[i])
	}
	return lp
}

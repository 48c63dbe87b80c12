package optim

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// polish refines u with a gonum local method in unit-cube coordinates.
func polish(ctx context.Context, b *box, u []float64, opts Options) attempt {
	p := optimize.Problem{
		Func:   b.eval,
		Status: ctxStatus(ctx),
	}
	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}

	var method optimize.Method
	switch opts.Polish {
	case PolishBFGS:
		p.Grad = func(grad, x []float64) {
			fd.Gradient(grad, b.eval, x, &fd.Settings{Formula: fd.Central, Step: 1e-6})
			for i, g := range grad {
				if math.IsNaN(g) || math.IsInf(g, 0) {
					grad[i] = 0
				}
			}
		}
		method = &optimize.BFGS{}
	default:
		method = &optimize.NelderMead{SimplexSize: 0.02}
	}

	res, err := optimize.Minimize(p, u, settings, method)
	if res == nil {
		return attempt{x: u, f: math.Inf(1), err: err}
	}
	return attempt{
		x:         res.X,
		f:         res.F,
		evals:     res.FuncEvaluations,
		converged: err == nil,
		err:       err,
	}
}

// cmaes runs gonum's CMA-ES from u with a step size of a quarter of the
// unit cube.
func cmaes(ctx context.Context, b *box, u []float64, opts Options, src rand.Source) attempt {
	p := optimize.Problem{
		Func:   b.eval,
		Status: ctxStatus(ctx),
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.25,
		Src:          src,
	}
	if opts.Population > 0 {
		method.Population = max(opts.Population, 4)
	}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxGenerations,
		FuncEvaluations: opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(p, u, settings, method)
	if res == nil {
		return attempt{x: u, f: math.Inf(1), err: err}
	}
	return attempt{
		x:         res.X,
		f:         res.F,
		evals:     res.FuncEvaluations,
		converged: err == nil && !res.Status.Early(),
		err:       err,
	}
}

func ctxStatus(ctx context.Context) func() (optimize.Status, error) {
	return func() (optimize.Status, error) {
		if err := ctx.Err(); err != nil {
			return optimize.Failure, err
		}
		return optimize.NotTerminated, nil
	}
}

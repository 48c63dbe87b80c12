package optim

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	deCrossover = 0.7
	deMinPop    = 5
)

// differentialEvolution runs the best/1/bin scheme with a dithered
// mutation factor in [0.5, 1). Each generation draws all its random numbers
// from one stream before the trial vectors are evaluated concurrently, so
// the result does not depend on the worker count.
func differentialEvolution(ctx context.Context, b *box, start []float64, opts Options, stream diffusion.Stream) attempt {
	n := opts.Population * b.dim
	if n < deMinPop {
		n = deMinPop
	}

	pop := latinHypercube(n, b.dim, stream.Rand(0))
	if start != nil {
		copy(pop[0], start)
	}
	energy := make([]float64, n)
	evaluateAll(b, pop, energy, opts.Workers)
	evals := n

	trials := make([][]float64, n)
	for i := range trials {
		trials[i] = make([]float64, b.dim)
	}
	trialEnergy := make([]float64, n)

	converged := false
	for gen := 1; gen <= opts.MaxGenerations; gen++ {
		if ctx.Err() != nil {
			break
		}
		if populationConverged(energy, opts.Tolerance) {
			converged = true
			break
		}

		rng := stream.Rand(uint64(gen))
		best := floats.MinIdx(energy)
		scale := 0.5 + 0.5*rng.Float64()
		for i := range trials {
			r1, r2 := pickTwo(rng, n, i)
			jrand := rng.IntN(b.dim)
			for j := range trials[i] {
				if j == jrand || rng.Float64() < deCrossover {
					trials[i][j] = pop[best][j] + scale*(pop[r1][j]-pop[r2][j])
				} else {
					trials[i][j] = pop[i][j]
				}
				if trials[i][j] < 0 || trials[i][j] > 1 {
					trials[i][j] = rng.Float64()
				}
			}
		}

		evaluateAll(b, trials, trialEnergy, opts.Workers)
		evals += n
		for i := range pop {
			if trialEnergy[i] <= energy[i] {
				copy(pop[i], trials[i])
				energy[i] = trialEnergy[i]
			}
		}
	}

	best := floats.MinIdx(energy)
	return attempt{
		x:         append([]float64(nil), pop[best]...),
		f:         energy[best],
		evals:     evals,
		converged: converged,
	}
}

func evaluateAll(b *box, pop [][]float64, out []float64, workers int) {
	diffusion.ParallelFor(len(pop), 4, workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = b.eval(pop[i])
		}
	})
}

// populationConverged mirrors the usual relative criterion: the spread of
// energies is small against their mean.
func populationConverged(energy []float64, tol float64) bool {
	for _, e := range energy {
		if math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.MeanStdDev(energy, nil)
	return std <= 1e-12+tol*math.Abs(mean)
}

func pickTwo(rng *rand.Rand, n, exclude int) (int, int) {
	r1 := rng.IntN(n - 1)
	if r1 >= exclude {
		r1++
	}
	r2 := rng.IntN(n - 2)
	lo, hi := min(r1, exclude), max(r1, exclude)
	if r2 >= lo {
		r2++
	}
	if r2 >= hi {
		r2++
	}
	return r1, r2
}

// latinHypercube places one point in each of n strata along every axis.
func latinHypercube(n, dim int, rng *rand.Rand) [][]float64 {
	pop := make([][]float64, n)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	for j := 0; j < dim; j++ {
		perm := rng.Perm(n)
		for i := range pop {
			pop[i][j] = (float64(perm[i]) + rng.Float64()) / float64(n)
		}
	}
	return pop
}

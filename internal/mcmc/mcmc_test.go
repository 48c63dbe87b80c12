package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/metrics"
	"gonum.org/v1/gonum/stat"
)

func gaussian(mu, sigma []float64) LogProb {
	return func(x []float64) float64 {
		lp := 0.0
		for i := range x {
			z := (x[i] - mu[i]) / sigma[i]
			lp -= 0.5 * z * z
		}
		return lp
	}
}

func TestSamplerRecoversGaussian(t *testing.T) {
	mu := []float64{1, -2}
	sigma := []float64{0.5, 2}
	chain, err := Run(context.Background(), Problem{
		LogProb: gaussian(mu, sigma),
		Start:   []float64{1.2, -1.5},
	}, Options{Steps: 3000, Thin: 5, Seed: 42, InitRadius: 0.5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := range mu {
		mean, std := stat.MeanStdDev(chain.Parameter(i), nil)
		if math.Abs(mean-mu[i]) > 0.15*sigma[i] {
			t.Errorf("param %d mean = %f, want %f", i, mean, mu[i])
		}
		if math.Abs(std-sigma[i])/sigma[i] > 0.15 {
			t.Errorf("param %d std = %f, want %f", i, std, sigma[i])
		}
	}

	if a := chain.AcceptanceFraction(); a < 0.2 || a > 0.9 {
		t.Errorf("acceptance fraction %f out of range", a)
	}
	for i, tau := range chain.AutocorrTime {
		if !(tau > 0) || math.IsInf(tau, 0) {
			t.Errorf("autocorrelation time %d = %f", i, tau)
		}
	}
}

func TestSamplerChainShape(t *testing.T) {
	chain, err := Run(context.Background(), Problem{
		LogProb: gaussian([]float64{0}, []float64{1}),
		Start:   []float64{0},
	}, Options{Walkers: 8, Steps: 100, BurnIn: 0.5, Thin: 10, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	if chain.Generations != 5 {
		t.Errorf("generations kept = %d, want 5", chain.Generations)
	}
	if len(chain.Samples) != 40 || len(chain.LogProb) != 40 {
		t.Errorf("samples = %d, log probs = %d, want 40", len(chain.Samples), len(chain.LogProb))
	}
}

func TestSamplerDeterministicAcrossWorkers(t *testing.T) {
	p := Problem{
		LogProb: gaussian([]float64{3, 1, 0}, []float64{1, 1, 1}),
		Start:   []float64{3, 1, 0.1},
	}
	a, err := Run(context.Background(), p, Options{Steps: 200, Seed: 9, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), p, Options{Steps: 200, Seed: 9, Workers: 8})
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.Samples {
		for d := range a.Samples[i] {
			if a.Samples[i][d] != b.Samples[i][d] {
				t.Fatalf("sample %d differs between worker counts", i)
			}
		}
	}
}

func TestSamplerRespectsSupport(t *testing.T) {
	box := func(x []float64) float64 {
		if x[0] < 0 || x[0] > 1 {
			return math.Inf(-1)
		}
		return 0
	}
	chain, err := Run(context.Background(), Problem{LogProb: box, Start: []float64{0.5}}, Options{Walkers: 10, Steps: 500, Seed: 3, InitRadius: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range chain.Parameter(0) {
		if x < 0 || x > 1 {
			t.Fatalf("sample %f outside support", x)
		}
	}
	if m := stat.Mean(chain.Parameter(0), nil); math.Abs(m-0.5) > 0.05 {
		t.Errorf("uniform mean = %f, want 0.5", m)
	}
}

func TestSamplerRealisesEveryGeneration(t *testing.T) {
	var calls atomic.Int64
	p := Problem{
		Realise: func(rng *rand.Rand) LogProb {
			calls.Add(1)
			shift := 0.1 * rng.NormFloat64()
			return func(x []float64) float64 {
				z := x[0] - shift
				return -0.5 * z * z
			}
		},
		Start: []float64{0},
	}
	steps := 50
	if _, err := Run(context.Background(), p, Options{Walkers: 4, Steps: steps, Seed: 1}); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != int64(steps+1) {
		t.Errorf("realisations = %d, want %d", got, steps+1)
	}
}

func TestSamplerNonFiniteTarget(t *testing.T) {
	p := Problem{
		LogProb: func([]float64) float64 { return math.NaN() },
		Start:   []float64{1},
	}
	_, err := Run(context.Background(), p, Options{Walkers: 4, Steps: 10})
	if !errors.Is(err, diffusion.ErrSampling) {
		t.Fatalf("expected sampling error, got %v", err)
	}
	var se *diffusion.SamplingError
	if !errors.As(err, &se) || se.Walkers != 4 {
		t.Errorf("unexpected error detail: %v", err)
	}
}

func TestSamplerCollapsingTarget(t *testing.T) {
	// Finite during initialisation, then nowhere.
	var gen atomic.Int64
	p := Problem{
		Realise: func(*rand.Rand) LogProb {
			if gen.Add(1) > 3 {
				return func([]float64) float64 { return math.Inf(-1) }
			}
			return gaussian([]float64{0}, []float64{1})
		},
		Start: []float64{0},
	}
	_, err := Run(context.Background(), p, Options{Walkers: 4, Steps: 10})
	var se *diffusion.SamplingError
	if !errors.As(err, &se) {
		t.Fatalf("expected SamplingError, got %v", err)
	}
	if se.Generation != 2 {
		t.Errorf("failed at generation %d, want 2", se.Generation)
	}
}

func TestSamplerValidation(t *testing.T) {
	lp := gaussian([]float64{0, 0}, []float64{1, 1})
	tests := []struct {
		name string
		p    Problem
		opts Options
	}{
		{"no target", Problem{Start: []float64{0}}, Options{}},
		{"no start", Problem{LogProb: lp}, Options{}},
		{"odd walkers", Problem{LogProb: lp, Start: []float64{0, 0}}, Options{Walkers: 5}},
		{"too few walkers", Problem{LogProb: lp, Start: []float64{0, 0}}, Options{Walkers: 2}},
		{"burn-in", Problem{LogProb: lp, Start: []float64{0, 0}}, Options{BurnIn: 1}},
		{"stretch", Problem{LogProb: lp, Start: []float64{0, 0}}, Options{Stretch: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.p, tt.opts)
			if !errors.Is(err, diffusion.ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestSamplerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := 0
	opts := Options{Walkers: 4, Steps: 1000, Progress: func(d, total int) {
		done = d
		if d == 10 {
			cancel()
		}
	}}
	_, err := Run(ctx, Problem{LogProb: gaussian([]float64{0}, []float64{1}), Start: []float64{0}}, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if done != 10 {
		t.Errorf("ran %d generations after cancel", done-10)
	}
}

func TestSamplerExtraMetrics(t *testing.T) {
	s := New(Options{Walkers: 4, Steps: 20, Seed: 1}, WithMetric(metrics.NewStuck()), WithMetric(metrics.NewMeanLogProb()))
	chain, err := s.Run(context.Background(), Problem{LogProb: gaussian([]float64{0}, []float64{1}), Start: []float64{0}})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"acceptance_fraction", "stuck_walkers", "mean_log_prob"} {
		if _, ok := chain.Metrics[name]; !ok {
			t.Errorf("metric %s missing", name)
		}
	}
}

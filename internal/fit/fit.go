package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/distribution"
	"github.com/san-kum/diffusim/internal/mcmc"
	"github.com/san-kum/diffusim/internal/metrics"
	"github.com/san-kum/diffusim/internal/optim"
	"gonum.org/v1/gonum/stat/distuv"
)

// Problem is a fully specified fit: the log-likelihood of a parameter
// vector, the priors bounding it, and optionally a per-generation
// realisation of the likelihood for sampling.
type Problem struct {
	Model         Model
	LogLikelihood func(p []float64) float64
	Priors        []distuv.Uniform
	// Start is an initial guess for the optimiser, such as a closed-form
	// solution. It is clamped into the prior support.
	Start []float64
	// Realise, when set, draws the likelihood used by the sampler for one
	// generation. Otherwise LogLikelihood is sampled.
	Realise      func(rng *rand.Rand) func(p []float64) float64
	Observations int
}

type Options struct {
	Optim        optim.Options
	MCMC         mcmc.Options
	SkipSampling bool
	// Metrics builds fresh chain metrics for each run.
	Metrics func() []metrics.Metric
}

type Fitter struct {
	opts Options
	log  *slog.Logger
}

type Option func(*Fitter)

func WithLogger(log *slog.Logger) Option {
	return func(f *Fitter) {
		f.log = log
	}
}

func New(opts Options, options ...Option) *Fitter {
	f := &Fitter{opts: opts}
	for _, o := range options {
		o(f)
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// Run maximises the likelihood inside the prior support and then samples
// the posterior around the maximum.
func (f *Fitter) Run(ctx context.Context, p Problem) (*Result, error) {
	if err := p.Model.Validate(); err != nil {
		return nil, err
	}
	if len(p.Priors) != p.Model.Dim() {
		return nil, fmt.Errorf("%w: %d priors for %d parameters", diffusion.ErrDimensionMismatch, len(p.Priors), p.Model.Dim())
	}

	lower, upper := Bounds(p.Priors)
	var start []float64
	if p.Start != nil {
		start = make([]float64, len(p.Start))
		for i, v := range p.Start {
			start[i] = math.Max(lower[i], math.Min(upper[i], v))
		}
	}

	nll := func(x []float64) float64 {
		return -p.LogLikelihood(x)
	}
	opt, err := optim.New(f.opts.Optim, optim.WithLogger(f.log)).Minimize(ctx, optim.Problem{
		Func:  nll,
		Lower: lower,
		Upper: upper,
		Start: start,
	})
	if err != nil {
		return nil, fmt.Errorf("%s point estimate: %w", p.Model.Name, err)
	}
	if opt.Retries > 0 {
		f.log.Warn("point estimate needed retries", "model", p.Model.Name, "retries", opt.Retries)
	}

	diag := Diagnostics{
		Strategy:      opt.Strategy,
		Retries:       opt.Retries,
		Evaluations:   opt.Evaluations,
		LogLikelihood: -opt.F,
		Observations:  p.Observations,
	}
	if f.opts.SkipSampling {
		return NewResult(p.Model, opt.X, nil, diag), nil
	}

	mp := mcmc.Problem{Start: opt.X}
	if p.Realise != nil {
		mp.Realise = func(rng *rand.Rand) mcmc.LogProb {
			return posterior(p.Priors, p.Realise(rng))
		}
	} else {
		mp.LogProb = posterior(p.Priors, p.LogLikelihood)
	}

	mopts := f.opts.MCMC
	if mopts.Walkers == 0 {
		mopts.Walkers = max(mcmc.DefaultWalkers, 2*p.Model.Dim())
		mopts.Walkers += mopts.Walkers % 2
	}
	sopts := []mcmc.Option{mcmc.WithLogger(f.log)}
	if f.opts.Metrics != nil {
		for _, m := range f.opts.Metrics() {
			sopts = append(sopts, mcmc.WithMetric(m))
		}
	}
	chain, err := mcmc.New(mopts, sopts...).Run(ctx, mp)
	if err != nil {
		return nil, fmt.Errorf("%s posterior: %w", p.Model.Name, err)
	}

	dists := make([]distribution.Distribution, p.Model.Dim())
	for i, name := range p.Model.Params {
		d, err := distribution.New(name, chain.Parameter(i),
			distribution.WithUnit(p.Model.unit(i)),
			distribution.WithMaxLikelihood(opt.X[i]))
		if err != nil {
			return nil, fmt.Errorf("%s posterior: %w", p.Model.Name, err)
		}
		dists[i] = d
	}

	diag.AcceptanceFraction = chain.AcceptanceFraction()
	diag.AutocorrTime = chain.AutocorrTime
	diag.Samples = len(chain.Samples)
	diag.Metrics = chain.Metrics

	f.log.Info("fit complete", "model", p.Model.Name, "params", opt.X,
		"log_likelihood", diag.LogLikelihood, "samples", diag.Samples, "acceptance", diag.AcceptanceFraction)
	return NewResult(p.Model, opt.X, dists, diag), nil
}

func posterior(priors []distuv.Uniform, ll func([]float64) float64) mcmc.LogProb {
	return func(x []float64) float64 {
		lp := LogPrior(priors, x)
		if math.IsInf(lp, -1) {
			return lp
		}
		return lp + ll(x)
	}
}

// Package regress fits a model to interval mean squared displacements
// using their full bootstrap covariance.
package regress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/fit"
	"github.com/san-kum/diffusim/internal/mcmc"
	"github.com/san-kum/diffusim/internal/metrics"
	"github.com/san-kum/diffusim/internal/optim"
)

type Options struct {
	// Strategy is the point-estimate search. Empty selects a closed-form
	// start polished with BFGS for linear models and differential
	// evolution otherwise.
	Strategy     optim.Strategy
	MaxRetries   int
	Walkers      int
	Steps        int
	BurnIn       float64
	Thin         int
	Seed         int64
	Workers      int
	SkipSampling bool
	Progress     func(done, total int)
	Metrics      func() []metrics.Metric
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: optim.DefaultMaxRetries,
		Walkers:    mcmc.DefaultWalkers,
		Steps:      mcmc.DefaultSteps,
		BurnIn:     mcmc.DefaultBurnIn,
		Thin:       mcmc.DefaultThin,
	}
}

type Regressor struct {
	opts Options
	log  *slog.Logger
}

type Option func(*Regressor)

func WithLogger(log *slog.Logger) Option {
	return func(r *Regressor) {
		r.log = log
	}
}

func New(opts Options, options ...Option) *Regressor {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = optim.DefaultMaxRetries
	}
	if opts.BurnIn == 0 {
		opts.BurnIn = mcmc.DefaultBurnIn
	}
	r := &Regressor{opts: opts}
	for _, o := range options {
		o(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Fit estimates the model parameters from the bundle. A zero model selects
// MSD for the bundle's dimensionality. The bundle is not modified, so fits
// of different bundles may run concurrently.
func (r *Regressor) Fit(ctx context.Context, bundle *diffusion.CovarianceBundle, model fit.Model) (*fit.Result, error) {
	if bundle == nil {
		return nil, &diffusion.InsufficientDataError{Stage: "regression", Need: 1}
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	if model.Func == nil {
		model = MSD(max(bundle.Dims, 1))
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if bundle.Len() < model.Dim() {
		return nil, &diffusion.InsufficientDataError{Stage: "regression", Have: bundle.Len(), Need: model.Dim()}
	}

	gls, err := fit.NewGLS(bundle.Mean, bundle.Cov)
	if err != nil {
		return nil, fmt.Errorf("regression: %w", err)
	}

	times := append([]float64(nil), bundle.Times...)
	strategy := r.opts.Strategy
	polish := optim.PolishNelderMead
	var start []float64
	if model.Linear() {
		start, err = gls.Solve(times, model.Basis)
		if err != nil {
			r.log.Warn("closed-form solution failed, using global search", "model", model.Name, "error", err)
			start = nil
		}
	}
	if strategy == "" {
		strategy = optim.StrategyDifferentialEvolution
		if start != nil {
			strategy = optim.StrategyLocal
			polish = optim.PolishBFGS
		}
	}
	if strategy == optim.StrategyLocal && start == nil {
		return nil, fmt.Errorf("%w: local strategy needs a linear model", diffusion.ErrInvalidOption)
	}

	r.log.Debug("regressing", "model", model.Name, "intervals", bundle.Len(), "strategy", strategy, "start", start)

	p := fit.Problem{
		Model: model,
		LogLikelihood: func(params []float64) float64 {
			return gls.LogLikelihood(model.Eval(times, params, nil))
		},
		Priors:       model.Priors(times, bundle.Mean),
		Start:        start,
		Observations: bundle.Len(),
	}
	opts := fit.Options{
		Optim: optim.Options{
			Strategy:   strategy,
			Polish:     polish,
			MaxRetries: r.opts.MaxRetries,
			Seed:       r.opts.Seed,
			Workers:    r.opts.Workers,
		},
		MCMC: mcmc.Options{
			Walkers:  r.opts.Walkers,
			Steps:    r.opts.Steps,
			BurnIn:   r.opts.BurnIn,
			Thin:     r.opts.Thin,
			Seed:     r.opts.Seed,
			Workers:  r.opts.Workers,
			Progress: r.opts.Progress,
		},
		SkipSampling: r.opts.SkipSampling,
		Metrics:      r.opts.Metrics,
	}
	return fit.New(opts, fit.WithLogger(r.log)).Run(ctx, p)
}

// Fit is a convenience wrapper around New(opts).Fit(ctx, bundle, model).
func Fit(ctx context.Context, bundle *diffusion.CovarianceBundle, model fit.Model, opts Options) (*fit.Result, error) {
	return New(opts).Fit(ctx, bundle, model)
}

// Package arrhenius fits the temperature dependence of diffusion
// coefficients, propagating the full distribution of each coefficient into
// the activation energy and prefactor.
package arrhenius

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/distribution"
	"github.com/san-kum/diffusim/internal/fit"
	"github.com/san-kum/diffusim/internal/mcmc"
	"github.com/san-kum/diffusim/internal/metrics"
	"github.com/san-kum/diffusim/internal/optim"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Observation pairs a temperature with a diffusion coefficient. Either may
// carry uncertainty; use Point for an exact value.
type Observation struct {
	X distribution.Sampleable
	Y distribution.Sampleable
}

// Point is an exact value seen as a one-sample distribution.
type Point float64

func (p Point) Samples() []float64 { return []float64{float64(p)} }
func (p Point) Size() int          { return 1 }

type Mode string

const (
	// LikelihoodEmpirical scores each generation against one draw from
	// every observation's sample set.
	LikelihoodEmpirical Mode = "empirical"
	// LikelihoodGaussian scores against the summary mean and deviation.
	LikelihoodGaussian Mode = "gaussian"
)

type Options struct {
	Strategy   optim.Strategy
	MaxRetries int
	Walkers    int
	Steps      int
	BurnIn     float64
	Thin       int
	Seed       int64
	Workers    int
	Mode       Mode
	// Correlated draws the same sample index from every observation in a
	// generation, for inputs whose samples were produced jointly.
	Correlated bool
	// UnaccountedUncertainty adds a ln f parameter inflating every
	// variance by f²·D².
	UnaccountedUncertainty bool
	SkipSampling           bool
	Progress               func(done, total int)
	Metrics                func() []metrics.Metric
}

func DefaultOptions() Options {
	return Options{
		Strategy:   optim.StrategyDifferentialEvolution,
		MaxRetries: optim.DefaultMaxRetries,
		Walkers:    mcmc.DefaultWalkers,
		Steps:      mcmc.DefaultSteps,
		BurnIn:     mcmc.DefaultBurnIn,
		Thin:       mcmc.DefaultThin,
		Mode:       LikelihoodEmpirical,
	}
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
	d := DefaultOptions()
	if opts.Strategy == "" {
		opts.Strategy = d.Strategy
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = d.MaxRetries
	}
	if opts.BurnIn == 0 {
		opts.BurnIn = d.BurnIn
	}
	if opts.Mode == "" {
		opts.Mode = d.Mode
	}
	f := &Fitter{opts: opts}
	for _, o := range options {
		o(f)
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// data is the observation set after optional log transform.
type data struct {
	xs, ys     [][]float64
	xMean      []float64
	yMean      []float64
	yStd       []float64
	minSamples int
}

func prepare(obs []Observation, logSpace bool) (*data, error) {
	d := &data{
		xs:         make([][]float64, len(obs)),
		ys:         make([][]float64, len(obs)),
		xMean:      make([]float64, len(obs)),
		yMean:      make([]float64, len(obs)),
		yStd:       make([]float64, len(obs)),
		minSamples: math.MaxInt,
	}
	for i, o := range obs {
		if o.X == nil || o.Y == nil || o.X.Size() == 0 || o.Y.Size() == 0 {
			return nil, &diffusion.InsufficientDataError{Stage: fmt.Sprintf("arrhenius observation %d", i), Need: 1}
		}
		// Sampleable implementations may hand out their own storage.
		d.xs[i] = append([]float64(nil), o.X.Samples()...)
		for _, t := range d.xs[i] {
			if !(t > 0) {
				return nil, fmt.Errorf("%w: observation %d has temperature %g", diffusion.ErrInvalidOption, i, t)
			}
		}
		ys := append([]float64(nil), o.Y.Samples()...)
		if logSpace {
			for j, v := range ys {
				if !(v > 0) {
					return nil, fmt.Errorf("%w: observation %d sample %d is %g, cannot take logarithm", diffusion.ErrInvalidOption, i, j, v)
				}
				ys[j] = math.Log(v)
			}
		}
		d.ys[i] = ys
		d.xMean[i] = stat.Mean(d.xs[i], nil)
		d.yMean[i], d.yStd[i] = stat.MeanStdDev(ys, nil)
		if len(ys) < 2 || !(d.yStd[i] > 0) {
			return nil, fmt.Errorf("%w: observation %d has no spread; a distribution of at least two distinct samples is needed", diffusion.ErrInvalidOption, i)
		}
		d.minSamples = min(d.minSamples, len(ys))
	}
	return d, nil
}

// Fit estimates the model parameters from the observations. The
// observations are read once and never modified.
func (f *Fitter) Fit(ctx context.Context, obs []Observation, model Model) (*fit.Result, error) {
	if model.Func == nil {
		model = Standard()
	}
	if f.opts.UnaccountedUncertainty {
		model = model.withUnaccounted()
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if len(obs) < model.Dim() {
		return nil, &diffusion.InsufficientDataError{Stage: "arrhenius", Have: len(obs), Need: model.Dim()}
	}
	switch f.opts.Mode {
	case LikelihoodEmpirical, LikelihoodGaussian:
	default:
		return nil, fmt.Errorf("%w: unknown likelihood mode %q", diffusion.ErrInvalidOption, f.opts.Mode)
	}

	d, err := prepare(obs, model.LogSpace)
	if err != nil {
		return nil, err
	}

	extra := f.opts.UnaccountedUncertainty
	loglike := func(xs, ys, p []float64) float64 {
		pred := model.Eval(xs, p, nil)
		scale := 0.0
		if extra {
			scale = math.Exp(p[len(p)-1])
		}
		return fit.GaussianLogLikelihood(ys, d.yStd, pred, scale)
	}

	p := fit.Problem{
		Model: model.Model,
		LogLikelihood: func(params []float64) float64 {
			return loglike(d.xMean, d.yMean, params)
		},
		Priors:       model.Priors(d.xMean, d.yMean),
		Observations: len(obs),
	}
	if model.Linear() && !extra {
		if start, err := linearStart(d, model); err == nil {
			p.Start = start
		}
	}
	if f.opts.Mode == LikelihoodEmpirical {
		p.Realise = func(rng *rand.Rand) func([]float64) float64 {
			xs, ys := d.realise(rng, f.opts.Correlated)
			return func(params []float64) float64 {
				return loglike(xs, ys, params)
			}
		}
	}

	f.log.Debug("fitting temperature dependence", "model", model.Name, "observations", len(obs),
		"mode", f.opts.Mode, "correlated", f.opts.Correlated)

	opts := fit.Options{
		Optim: optim.Options{
			Strategy:   f.opts.Strategy,
			MaxRetries: f.opts.MaxRetries,
			Seed:       f.opts.Seed,
			Workers:    f.opts.Workers,
		},
		MCMC: mcmc.Options{
			Walkers:  f.opts.Walkers,
			Steps:    f.opts.Steps,
			BurnIn:   f.opts.BurnIn,
			Thin:     f.opts.Thin,
			Seed:     f.opts.Seed,
			Workers:  f.opts.Workers,
			Progress: f.opts.Progress,
		},
		SkipSampling: f.opts.SkipSampling,
		Metrics:      f.opts.Metrics,
	}
	if opts.Optim.Strategy == optim.StrategyLocal && p.Start == nil {
		return nil, fmt.Errorf("%w: local strategy needs a linear model", diffusion.ErrInvalidOption)
	}
	return fit.New(opts, fit.WithLogger(f.log)).Run(ctx, p)
}

// Fit is a convenience wrapper around New(opts).Fit(ctx, obs, model).
func Fit(ctx context.Context, obs []Observation, model Model, opts Options) (*fit.Result, error) {
	return New(opts).Fit(ctx, obs, model)
}

// realise draws one sample from every observation. With correlated draws a
// single index is shared, taken below the smallest sample count.
func (d *data) realise(rng *rand.Rand, correlated bool) (xs, ys []float64) {
	xs = make([]float64, len(d.xs))
	ys = make([]float64, len(d.ys))
	shared := rng.IntN(d.minSamples)
	for i := range ys {
		if correlated {
			xs[i] = d.xs[i][shared%len(d.xs[i])]
			ys[i] = d.ys[i][shared]
			continue
		}
		xs[i] = d.xs[i][rng.IntN(len(d.xs[i]))]
		ys[i] = d.ys[i][rng.IntN(len(d.ys[i]))]
	}
	return xs, ys
}

// linearStart is the weighted least squares solution for a model linear in
// its parameters.
func linearStart(d *data, model Model) ([]float64, error) {
	n := len(d.yMean)
	cov := make([]float64, n*n)
	for i, s := range d.yStd {
		cov[i*n+i] = s * s
	}
	gls, err := fit.NewGLS(d.yMean, mat.NewSymDense(n, cov))
	if err != nil {
		return nil, err
	}
	return gls.Solve(d.xMean, model.Basis)
}

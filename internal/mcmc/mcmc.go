// Package mcmc implements an affine-invariant ensemble sampler using the
// stretch move.
//
// Walkers are split into two halves. Each half is updated concurrently
// using positions from the other half only, and a barrier separates the
// two half-steps, so every generation is a pure function of the previous
// one and the seed.
package mcmc

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/san-kum/diffusim/internal/analysis"
	"github.com/san-kum/diffusim/internal/diffusion"
	"github.com/san-kum/diffusim/internal/metrics"
)

// LogProb returns the unnormalised log posterior at x. It must be safe for
// concurrent use; -Inf marks points outside the support.
type LogProb func(x []float64) float64

// Problem describes the target distribution and where to start.
type Problem struct {
	LogProb LogProb
	// Realise, when set, is called once per generation to draw a fresh
	// realisation of the target. Current and proposed walkers of that
	// generation are all scored against it.
	Realise func(rng *rand.Rand) LogProb
	Start   []float64
}

func (p Problem) target(rng *rand.Rand) LogProb {
	if p.Realise != nil {
		return p.Realise(rng)
	}
	return p.LogProb
}

const (
	DefaultWalkers    = 32
	DefaultSteps      = 1500
	DefaultBurnIn     = 1.0 / 3.0
	DefaultThin       = 10
	DefaultStretch    = 2.0
	DefaultInitRadius = 1e-4
	maxInitTries      = 100
)

type Options struct {
	Walkers int
	Steps   int
	// BurnIn is the fraction of Steps discarded from the start of the chain.
	BurnIn     float64
	Thin       int
	Stretch    float64
	InitRadius float64
	Seed       int64
	Workers    int
	// Progress, when set, is called after every generation.
	Progress func(done, total int)
}

func DefaultOptions() Options {
	return Options{
		Walkers:    DefaultWalkers,
		Steps:      DefaultSteps,
		BurnIn:     DefaultBurnIn,
		Thin:       DefaultThin,
		Stretch:    DefaultStretch,
		InitRadius: DefaultInitRadius,
	}
}

// Chain holds the kept samples. Samples is ordered by kept generation and
// then walker, and indexed [sample][parameter].
type Chain struct {
	Samples     [][]float64
	LogProb     []float64
	Walkers     int
	Generations int
	// AutocorrTime is the integrated autocorrelation time of each
	// parameter, in generations, over the post burn-in chain.
	AutocorrTime []float64
	Metrics      map[string]float64
}

func (c *Chain) AcceptanceFraction() float64 {
	return c.Metrics["acceptance_fraction"]
}

// Parameter returns every kept sample of parameter i.
func (c *Chain) Parameter(i int) []float64 {
	out := make([]float64, len(c.Samples))
	for j, s := range c.Samples {
		out[j] = s[i]
	}
	return out
}

type Sampler struct {
	opts    Options
	log     *slog.Logger
	metrics []metrics.Metric
}

type Option func(*Sampler)

func WithLogger(log *slog.Logger) Option {
	return func(s *Sampler) {
		s.log = log
	}
}

// WithMetric adds a metric observed after every generation, in addition to
// the acceptance fraction that is always collected.
func WithMetric(m metrics.Metric) Option {
	return func(s *Sampler) {
		s.metrics = append(s.metrics, m)
	}
}

func New(opts Options, options ...Option) *Sampler {
	d := DefaultOptions()
	if opts.Walkers == 0 {
		opts.Walkers = d.Walkers
	}
	if opts.Steps == 0 {
		opts.Steps = d.Steps
	}
	if opts.Thin == 0 {
		opts.Thin = d.Thin
	}
	if opts.Stretch == 0 {
		opts.Stretch = d.Stretch
	}
	if opts.InitRadius == 0 {
		opts.InitRadius = d.InitRadius
	}
	s := &Sampler{opts: opts, metrics: []metrics.Metric{metrics.NewAcceptance()}}
	for _, o := range options {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *Sampler) validate(p Problem) error {
	if p.LogProb == nil && p.Realise == nil {
		return fmt.Errorf("%w: no log probability", diffusion.ErrInvalidOption)
	}
	dim := len(p.Start)
	if dim == 0 {
		return fmt.Errorf("%w: empty start point", diffusion.ErrInvalidOption)
	}
	w := s.opts.Walkers
	if w < 2*dim || w%2 != 0 {
		return fmt.Errorf("%w: need an even number of at least %d walkers, got %d", diffusion.ErrInvalidOption, 2*dim, w)
	}
	if s.opts.Steps < 1 || s.opts.Thin < 1 {
		return fmt.Errorf("%w: steps %d, thin %d", diffusion.ErrInvalidOption, s.opts.Steps, s.opts.Thin)
	}
	if s.opts.BurnIn < 0 || s.opts.BurnIn >= 1 {
		return fmt.Errorf("%w: burn-in fraction %g outside [0, 1)", diffusion.ErrInvalidOption, s.opts.BurnIn)
	}
	if s.opts.Stretch <= 1 {
		return fmt.Errorf("%w: stretch scale must exceed 1, got %g", diffusion.ErrInvalidOption, s.opts.Stretch)
	}
	return nil
}

// Run samples the target for Steps generations. The context is checked
// between generations.
func (s *Sampler) Run(ctx context.Context, p Problem) (*Chain, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	w := s.opts.Walkers
	dim := len(p.Start)
	stream := diffusion.NewStream(s.opts.Seed)
	realisations := stream.Derive(1)

	e := &ensemble{
		pos:      make([][]float64, w),
		lnp:      make([]float64, w),
		accepted: make([]bool, w),
		dim:      dim,
		stretch:  s.opts.Stretch,
		workers:  s.opts.Workers,
	}
	if err := e.init(p, s.opts.InitRadius, stream.Derive(0).Rand(0), realisations.Rand(0)); err != nil {
		return nil, err
	}

	burn := int(s.opts.BurnIn * float64(s.opts.Steps))
	kept := (s.opts.Steps - burn + s.opts.Thin - 1) / s.opts.Thin
	chain := &Chain{
		Samples: make([][]float64, 0, kept*w),
		LogProb: make([]float64, 0, kept*w),
		Walkers: w,
	}
	traces := make([][][]float64, dim)
	for d := range traces {
		traces[d] = make([][]float64, w)
	}

	for gen := 0; gen < s.opts.Steps; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lp := p.target(realisations.Rand(uint64(gen + 1)))
		if p.Realise != nil {
			e.rescore(lp)
		}
		for i := range e.accepted {
			e.accepted[i] = false
		}
		e.half(lp, 0, stream, gen)
		e.half(lp, 1, stream, gen)

		if !e.anyFinite() {
			return nil, &diffusion.SamplingError{Generation: gen, Walkers: w}
		}

		g := metrics.Generation{Index: gen, LogProb: e.lnp, Accepted: e.accepted}
		for _, m := range s.metrics {
			m.Observe(g)
		}

		if gen >= burn {
			for k := 0; k < w; k++ {
				for d := 0; d < dim; d++ {
					traces[d][k] = append(traces[d][k], e.pos[k][d])
				}
			}
			if (gen-burn)%s.opts.Thin == 0 {
				for k := 0; k < w; k++ {
					chain.Samples = append(chain.Samples, append([]float64(nil), e.pos[k]...))
					chain.LogProb = append(chain.LogProb, e.lnp[k])
				}
				chain.Generations++
			}
		}
		if s.opts.Progress != nil {
			s.opts.Progress(gen+1, s.opts.Steps)
		}
	}

	chain.AutocorrTime = make([]float64, dim)
	for d := range traces {
		chain.AutocorrTime[d] = analysis.IntegratedTime(traces[d], analysis.DefaultWindow)
	}
	chain.Metrics = metrics.Collect(s.metrics)

	s.log.Debug("sampling finished",
		"walkers", w, "steps", s.opts.Steps, "kept", len(chain.Samples),
		"acceptance", chain.AcceptanceFraction(), "tau", chain.AutocorrTime)
	if tau := maxFinite(chain.AutocorrTime); tau > 0 && float64(s.opts.Steps-burn) < 50*tau {
		s.log.Warn("chain shorter than 50 autocorrelation times", "steps", s.opts.Steps-burn, "tau", tau)
	}
	return chain, nil
}

// Run is a convenience wrapper around New(opts).Run(ctx, p).
func Run(ctx context.Context, p Problem, opts Options) (*Chain, error) {
	return New(opts).Run(ctx, p)
}

type ensemble struct {
	pos      [][]float64
	lnp      []float64
	accepted []bool
	dim      int
	stretch  float64
	workers  int
}

// init places walkers in a ball around start. Walkers landing outside the
// support are redrawn a bounded number of times.
func (e *ensemble) init(p Problem, radius float64, rng, realRng *rand.Rand) error {
	lp := p.target(realRng)
	for k := range e.pos {
		x := make([]float64, e.dim)
		for try := 0; try < maxInitTries; try++ {
			for d, v := range p.Start {
				scale := radius * math.Abs(v)
				if scale == 0 {
					scale = radius
				}
				x[d] = v + scale*rng.NormFloat64()
			}
			e.lnp[k] = finiteOrNegInf(lp(x))
			if !math.IsInf(e.lnp[k], -1) {
				break
			}
		}
		e.pos[k] = x
	}
	if !e.anyFinite() {
		return &diffusion.SamplingError{Generation: 0, Walkers: len(e.pos)}
	}
	return nil
}

func (e *ensemble) rescore(lp LogProb) {
	diffusion.ParallelFor(len(e.pos), 4, e.workers, func(start, end int) {
		for k := start; k < end; k++ {
			e.lnp[k] = finiteOrNegInf(lp(e.pos[k]))
		}
	})
}

// half updates the walkers of one half against the other half, returning
// once every walker of the half has moved or stayed.
func (e *ensemble) half(lp LogProb, h int, stream diffusion.Stream, gen int) {
	w := len(e.pos)
	n := w / 2
	active := h * n
	other := (1 - h) * n

	// ParallelFor waits for every chunk, which is the barrier between the
	// two halves.
	diffusion.ParallelFor(n, 2, e.workers, func(start, end int) {
		y := make([]float64, e.dim)
		for i := start; i < end; i++ {
			k := active + i
			rng := stream.Rand(uint64(gen)*uint64(w) + uint64(k))

			c := e.pos[other+rng.IntN(n)]
			u := rng.Float64()
			z := (e.stretch - 1) * u
			z = (z + 1) * (z + 1) / e.stretch
			for d := range y {
				y[d] = c[d] + z*(e.pos[k][d]-c[d])
			}
			lpy := finiteOrNegInf(lp(y))
			q := float64(e.dim-1)*math.Log(z) + lpy - e.lnp[k]
			if !math.IsInf(lpy, -1) && math.Log(rng.Float64()) < q {
				e.pos[k] = append(e.pos[k][:0], y...)
				e.lnp[k] = lpy
				e.accepted[k] = true
			}
		}
	})
}

func (e *ensemble) anyFinite() bool {
	for _, v := range e.lnp {
		if !math.IsInf(v, -1) {
			return true
		}
	}
	return false
}

func finiteOrNegInf(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(-1)
	}
	return v
}

func maxFinite(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) && x > m {
			m = x
		}
	}
	return m
}
